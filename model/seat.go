package model

import (
	"strconv"
	"strings"
)

type SeatStatus string

const (
	SeatAvailable   SeatStatus = "available"
	SeatSelected    SeatStatus = "selected"
	SeatBooked      SeatStatus = "booked"
	SeatUnavailable SeatStatus = "unavailable"
)

type Seat struct {
	Id         string     `json:"id"`
	SeatNumber string     `json:"seatNumber"`
	Status     SeatStatus `json:"status"`
	ShowId     string     `json:"showId"`
}

// SeatID builds the show-scoped identifier for a seat label.
func SeatID(showID string, seatNumber string) string {
	return showID + "-" + seatNumber
}

// Row returns the row label, the first character of the seat number.
func (s Seat) Row() string {
	label := strings.TrimSpace(s.SeatNumber)
	if label == "" {
		return ""
	}
	for _, r := range label {
		return string(r)
	}
	return ""
}

// Column returns the trailing numeric part of the seat number. Labels without a
// parsable number sort as column 0.
func (s Seat) Column() int {
	label := strings.TrimSpace(s.SeatNumber)
	row := s.Row()
	if len(label) <= len(row) {
		return 0
	}
	n, err := strconv.Atoi(label[len(row):])
	if err != nil {
		return 0
	}
	return n
}
