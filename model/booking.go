package model

type BookingPayload struct {
	UserId      string   `json:"userId"`
	ShowId      string   `json:"showId"`
	SeatNumbers []string `json:"seatNumbers"`
}

type BookingConfirmation struct {
	BookingId string `json:"bookingId,omitempty"`
	Message   string `json:"message"`
}
