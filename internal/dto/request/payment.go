package request

type RemainingPaymentRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	ArtistID string `json:"artist_id" validate:"required,uuid"`
}

type WithdrawRequest struct {
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	RequestKey string `json:"request_key" validate:"required,max=64"`
}
