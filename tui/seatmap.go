package tui

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cinebooker-cli/booking"
	"cinebooker-cli/model"
	"cinebooker-cli/service"
)

func (m appModel) handleSeatMapKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	if m.engine == nil {
		return m, nil, false
	}
	if msg.Type == tea.KeySpace {
		return m.toggleAtCursor()
	}
	switch msg.String() {
	case "up", "k":
		m.moveCursor(-1, 0)
	case "down", "j":
		m.moveCursor(1, 0)
	case "left", "h":
		m.moveCursor(0, -1)
	case "right", "l":
		m.moveCursor(0, 1)
	case "x":
		return m.toggleAtCursor()
	case "enter":
		return m.startBooking()
	case "n":
		m.showSeatNumbers = !m.showSeatNumbers
	case "r":
		if m.engine.Submitting() {
			m.setNotice(sentence(booking.ErrBookingInProgress.Error()), true)
			return m, nil, true
		}
		m.setNotice("Reloading seats...", false)
		return m, m.fetchShowCmd(m.engine.Show().Id, true), true
	default:
		return m, nil, false
	}
	return m, nil, true
}

func (m appModel) toggleAtCursor() (appModel, tea.Cmd, bool) {
	seat, ok := m.cursorSeat()
	if !ok {
		return m, nil, true
	}
	err := m.engine.Toggle(seat.Id)
	switch {
	case err == nil:
		m.clearNotice()
	case errors.Is(err, booking.ErrSeatNotSelectable):
		// booked and unavailable seats ignore toggles
	default:
		m.setNotice(displayError(err), true)
	}
	return m, nil, true
}

func (m appModel) startBooking() (appModel, tea.Cmd, bool) {
	total := m.engine.Total()
	payload, err := m.engine.Prepare()
	if errors.Is(err, booking.ErrAuthenticationRequired) && m.sessions != nil {
		next, cmd, handled := m.openForm(formLogin)
		next.setNotice("Log in to book tickets.", true)
		return next, cmd, handled
	}
	if err != nil {
		m.setNotice(displayError(err), true)
		return m, nil, true
	}
	if m.client == nil {
		m.engine.Complete(errors.New("no API client configured"))
		m.setNotice("Booking is unavailable right now.", true)
		return m, nil, true
	}
	m.clearNotice()
	m.state = stateBooking
	return m, tea.Batch(m.bookCmd(payload, total), m.spinner.Tick), true
}

func (m *appModel) moveCursor(dRow int, dCol int) {
	m.cursorRow += dRow
	m.cursorCol += dCol
	m.clampCursor()
}

func (m *appModel) clampCursor() {
	if m.engine == nil {
		m.cursorRow, m.cursorCol = 0, 0
		return
	}
	rows := m.engine.Rows()
	if len(rows) == 0 {
		m.cursorRow, m.cursorCol = 0, 0
		return
	}
	m.cursorRow = clamp(m.cursorRow, 0, len(rows)-1)
	m.cursorCol = clamp(m.cursorCol, 0, len(rows[m.cursorRow].Seats)-1)
}

func (m appModel) cursorSeat() (model.Seat, bool) {
	if m.engine == nil {
		return model.Seat{}, false
	}
	rows := m.engine.Rows()
	if m.cursorRow < 0 || m.cursorRow >= len(rows) {
		return model.Seat{}, false
	}
	seats := rows[m.cursorRow].Seats
	if m.cursorCol < 0 || m.cursorCol >= len(seats) {
		return model.Seat{}, false
	}
	return seats[m.cursorCol], true
}

func (m appModel) renderSeatMap() string {
	if m.engine == nil {
		return "No show selected."
	}
	if !m.engine.HasSeats() {
		return "No seats are defined for this show.\n\n" + hint("Press esc to pick another show.")
	}

	rows := m.engine.Rows()
	rowWidth := 1
	cellWidth := 2
	maxCols := 0
	for _, row := range rows {
		rowWidth = max(rowWidth, len(row.Label))
		maxCols = max(maxCols, len(row.Seats))
		if m.showSeatNumbers {
			for _, seat := range row.Seats {
				cellWidth = max(cellWidth, len(seat.SeatNumber))
			}
		}
	}

	seatStyleAvailable := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	seatStyleSelected := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("5")).Bold(true)
	seatStyleBooked := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	seatStyleUnavailable := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle := lipgloss.NewStyle().Reverse(true).Bold(true)

	var b strings.Builder
	for r, row := range rows {
		b.WriteString(fmt.Sprintf("%*s ", rowWidth, row.Label))
		for c, seat := range row.Seats {
			text := seatToken(seat.Status)
			if m.showSeatNumbers {
				text = seat.SeatNumber
			}
			rendered := seatCell(text, cellWidth)
			switch {
			case r == m.cursorRow && c == m.cursorCol:
				rendered = cursorStyle.Render(rendered)
			case seat.Status == model.SeatSelected:
				rendered = seatStyleSelected.Render(rendered)
			case seat.Status == model.SeatAvailable:
				rendered = seatStyleAvailable.Render(rendered)
			case seat.Status == model.SeatBooked:
				rendered = seatStyleBooked.Render(rendered)
			default:
				rendered = seatStyleUnavailable.Render(rendered)
			}
			b.WriteString(rendered)
			if c < len(row.Seats)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}

	gridWidth := maxCols*(cellWidth+1) - 1
	screen := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("214")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("214")).
		Align(lipgloss.Center).
		Width(max(gridWidth-2, len(screenLabel)+2)).
		MarginLeft(rowWidth + 1).
		Render(screenLabel)
	b.WriteString("\n" + screen + "\n\n")

	legend := "Legend: [] available • ## selected • XX booked • -- unavailable"
	if m.showSeatNumbers {
		legend = "Legend: green available • purple selected • red booked • grey unavailable"
	}
	return b.String() + hint(legend) + "\n" + m.selectionSummary()
}

func (m appModel) selectionSummary() string {
	selection := m.engine.Selection()
	if len(selection) == 0 {
		return hint(fmt.Sprintf("No seats selected • up to %d per booking • %s each", booking.MaxSelectedSeats, formatRupees(m.engine.UnitPrice().StringFixed(2))))
	}
	numbers := make([]string, 0, len(selection))
	for _, seat := range selection {
		numbers = append(numbers, seat.SeatNumber)
	}
	style := lipgloss.NewStyle().Bold(true)
	return style.Render(fmt.Sprintf("Selected: %s • %d/%d • Total: %s",
		strings.Join(numbers, ", "),
		len(selection),
		booking.MaxSelectedSeats,
		formatRupees(m.engine.Total().StringFixed(2)),
	))
}

func seatToken(status model.SeatStatus) string {
	switch status {
	case model.SeatAvailable:
		return "[]"
	case model.SeatSelected:
		return "##"
	case model.SeatBooked:
		return "XX"
	default:
		return "--"
	}
}

const screenLabel = "SCREEN"

// seatCell centers text in a fixed-width grid cell, cutting it when too long.
func seatCell(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runes := []rune(text); len(runes) > width {
		text = string(runes[:width])
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, text)
}

func clamp(v int, lo int, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

// sentence upper-cases the first letter of an error string for display.
func sentence(text string) string {
	text = strings.TrimSpace(text)
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return text
	}
	text = string(unicode.ToUpper(r)) + text[size:]
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		text += "."
	}
	return text
}

func displayError(err error) string {
	return sentence(service.UserMessage(err))
}
