package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Movie struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Genre       string `json:"genre"`
	Duration    int64  `json:"duration"`
	Description string `json:"description"`
	PosterUrl   string `json:"posterUrl"`
}

// DurationLabel formats the movie duration (milliseconds) as "2h 15m".
func (m Movie) DurationLabel() string {
	return FormatDurationMs(m.Duration)
}

type Show struct {
	Id               string           `json:"id"`
	MovieId          string           `json:"movieId"`
	TheatreId        string           `json:"theatreId"`
	TheatreName      string           `json:"theatreName,omitempty"`
	ShowTime         string           `json:"showTime"`
	SeatAvailability map[string]bool  `json:"seatAvailability,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
}

var showTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// StartsAt parses ShowTime. The API sends ISO strings with or without an offset.
func (s Show) StartsAt() (time.Time, bool) {
	raw := strings.TrimSpace(s.ShowTime)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range showTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type Theatre struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// FormatDurationMs renders a millisecond duration with hour/minute precision.
func FormatDurationMs(ms int64) string {
	if ms <= 0 {
		return "N/A"
	}
	totalMinutes := ms / 1000 / 60
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "N/A"
	}
}
