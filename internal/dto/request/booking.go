package request

import "time"

type CreateRequestRequest struct {
	Title       string    `json:"title" validate:"required,min=3,max=200"`
	EventTypes  []string  `json:"event_types" validate:"required,min=1,dive,required,max=50"`
	Location    string    `json:"location" validate:"required,max=300"`
	EventStart  time.Time `json:"event_start" validate:"required"`
	EventEnd    time.Time `json:"event_end" validate:"required,gtfield=EventStart"`
	BudgetMin   int64     `json:"budget_min" validate:"gte=0"`
	BudgetMax   int64     `json:"budget_max" validate:"gtefield=BudgetMin"`
	Currency    string    `json:"currency" validate:"omitempty,len=3"`
	DepositMode string    `json:"deposit_mode" validate:"required,oneof=half full"`
}

type CancelBookingRequest struct {
	// Cause is only honoured for admins; clients and artists cancel as themselves.
	Cause  string `json:"cause" validate:"omitempty,oneof=client artist platform"`
	Reason string `json:"reason" validate:"required,max=500"`
}
