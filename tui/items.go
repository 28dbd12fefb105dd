package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"cinebooker-cli/booking"
	"cinebooker-cli/model"
	"cinebooker-cli/service"
)

type movieItem struct {
	movie model.Movie
}

func (m movieItem) Title() string {
	return m.movie.Name
}

func (m movieItem) Description() string {
	parts := []string{}
	if genre := strings.TrimSpace(m.movie.Genre); genre != "" {
		parts = append(parts, genre)
	}
	parts = append(parts, m.movie.DurationLabel())
	return strings.Join(parts, " • ")
}

func (m movieItem) FilterValue() string {
	return strings.ToLower(m.movie.Name + " " + m.movie.Genre)
}

type showItem struct {
	show    model.Show
	theatre string
}

func (s showItem) Title() string {
	return formatShowTime(s.show)
}

func (s showItem) Description() string {
	parts := []string{s.theatre, formatRupees(booking.UnitPrice(s.show).StringFixed(2))}
	if s.show.SeatAvailability != nil {
		parts = append(parts, fmt.Sprintf("%d seats available", availableSeats(s.show)))
	}
	return strings.Join(parts, " • ")
}

func (s showItem) FilterValue() string {
	return strings.ToLower(s.theatre + " " + formatShowTime(s.show))
}

func buildMovieItems(movies []model.Movie) []list.Item {
	items := make([]list.Item, 0, len(movies))
	for _, movie := range movies {
		items = append(items, movieItem{movie: movie})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].(movieItem).movie.Name) < strings.ToLower(items[j].(movieItem).movie.Name)
	})
	return items
}

// buildShowItems keeps the order of shows, which arrive sorted by start time.
func buildShowItems(shows []model.Show, theatreNames map[string]string) []list.Item {
	items := make([]list.Item, 0, len(shows))
	for _, show := range shows {
		var theatre *model.Theatre
		if name, ok := theatreNames[show.TheatreId]; ok {
			theatre = &model.Theatre{Id: show.TheatreId, Name: name}
		}
		items = append(items, showItem{show: show, theatre: service.TheatreLabel(show, theatre)})
	}
	return items
}

func formatShowTime(show model.Show) string {
	if t, ok := show.StartsAt(); ok {
		return t.Format("Mon 02 Jan • 15:04")
	}
	if raw := strings.TrimSpace(show.ShowTime); raw != "" {
		return raw
	}
	return "Time N/A"
}

func availableSeats(show model.Show) int {
	count := 0
	for _, available := range show.SeatAvailability {
		if available {
			count++
		}
	}
	return count
}

func formatRupees(amount string) string {
	return "₹" + amount
}
