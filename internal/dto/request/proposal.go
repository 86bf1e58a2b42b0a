package request

type SubmitProposalRequest struct {
	Price           int64  `json:"price" validate:"required,gt=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	Message         string `json:"message" validate:"max=2000"`
}

type DecideProposalRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
