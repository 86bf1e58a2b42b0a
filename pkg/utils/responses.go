package utils

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func ResponseJSON(w http.ResponseWriter, code int, status bool, message string, data, errors any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{
		Status:  status,
		Message: message,
		Data:    data,
		Errors:  errors,
	})
}

func ResponseSuccess(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusOK, true, message, data, nil)
}

func ResponseCreated(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusCreated, true, message, data, nil)
}

// ==================== ERRORS ====================

// fail writes an error envelope. details go to Errors for validation style
// failures and to Data when the client can act on them (redirects, amounts).
func fail(w http.ResponseWriter, code int, message string, data, details any) {
	ResponseJSON(w, code, false, message, data, details)
}

func ResponseBadRequest(w http.ResponseWriter, message string, errors any) {
	fail(w, http.StatusBadRequest, message, nil, errors)
}

func ResponseUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="gig-booking"`)
	fail(w, http.StatusUnauthorized, message, nil, nil)
}

func ResponseForbidden(w http.ResponseWriter, message string) {
	fail(w, http.StatusForbidden, message, nil, nil)
}

func ResponseNotFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, message, nil, nil)
}

// ResponseConflict is used for retry-after-refresh conflicts. data may carry
// what the client needs to resolve it, e.g. an onboarding redirect.
func ResponseConflict(w http.ResponseWriter, message string, data any) {
	fail(w, http.StatusConflict, message, data, nil)
}

func ResponseUnprocessable(w http.ResponseWriter, message string, errors any) {
	fail(w, http.StatusUnprocessableEntity, message, nil, errors)
}

func ResponseTooManyRequests(w http.ResponseWriter, message string) {
	fail(w, http.StatusTooManyRequests, message, nil, nil)
}

func ResponseInternalError(w http.ResponseWriter, message string) {
	fail(w, http.StatusInternalServerError, message, nil, nil)
}

// ResponseServiceUnavailable marks a transient failure; the request is safe
// to retry as is.
func ResponseServiceUnavailable(w http.ResponseWriter, message string) {
	w.Header().Set("Retry-After", "1")
	fail(w, http.StatusServiceUnavailable, message, nil, nil)
}
