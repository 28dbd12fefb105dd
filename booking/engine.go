package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cinebooker-cli/logging"
	"cinebooker-cli/model"
)

// MaxSelectedSeats caps the selection for one booking.
const MaxSelectedSeats = 6

// DefaultUnitPrice applies when a show has no price of its own.
var DefaultUnitPrice = decimal.NewFromInt(150)

var (
	ErrSelectionLimitExceeded = fmt.Errorf("selection limit reached: you can select a maximum of %d seats", MaxSelectedSeats)
	ErrNoSeatsSelected        = errors.New("no seats selected: select at least one seat to proceed")
	ErrAuthenticationRequired = errors.New("authentication required: log in to book tickets")
	ErrBookingInProgress      = errors.New("a booking is already in progress")
	ErrSeatNotSelectable      = errors.New("seat cannot be selected")
	ErrSeatNotFound           = errors.New("seat not found")

	errNoBooker = errors.New("no booking client configured")
)

// SessionProvider exposes the current session read-only.
type SessionProvider interface {
	Session() (model.Session, bool)
}

// Booker submits booking requests to the API.
type Booker interface {
	BookTickets(ctx context.Context, payload model.BookingPayload) (model.BookingConfirmation, error)
}

// Engine holds the seat grid and selection for one show. It is not safe for
// concurrent use; drive it from a single event loop.
type Engine struct {
	show      model.Show
	seats     []model.Seat
	index     map[string]int
	selection []string
	pending   *model.BookingPayload

	sessions SessionProvider
	booker   Booker
	logger   *zap.Logger
}

func NewEngine(show model.Show, sessions SessionProvider, booker Booker, logger *zap.Logger) *Engine {
	e := &Engine{
		sessions: sessions,
		booker:   booker,
		logger:   logging.OrNop(logger),
	}
	e.load(show)
	return e
}

// Initialize builds the grid for a show from its seat availability map.
// Available seats start as available, the rest as booked. Labels that collide
// after trimming collapse into one seat, which is booked if any of them is.
// Seats come back in layout order.
func Initialize(showID string, availability map[string]bool) []model.Seat {
	seats := make([]model.Seat, 0, len(availability))
	seen := make(map[string]int, len(availability))
	for label, available := range availability {
		number := strings.TrimSpace(label)
		if number == "" {
			continue
		}
		status := model.SeatBooked
		if available {
			status = model.SeatAvailable
		}
		if i, ok := seen[number]; ok {
			if status == model.SeatBooked {
				seats[i].Status = model.SeatBooked
			}
			continue
		}
		seen[number] = len(seats)
		seats = append(seats, model.Seat{
			Id:         model.SeatID(showID, number),
			SeatNumber: number,
			Status:     status,
			ShowId:     showID,
		})
	}

	ordered := make([]model.Seat, 0, len(seats))
	for _, row := range Layout(seats) {
		ordered = append(ordered, row.Seats...)
	}
	return ordered
}

// Reload replaces the grid with a fresh copy of the show. The selection is
// dropped.
func (e *Engine) Reload(show model.Show) error {
	if e.pending != nil {
		return ErrBookingInProgress
	}
	e.load(show)
	return nil
}

func (e *Engine) load(show model.Show) {
	e.show = show
	e.seats = Initialize(show.Id, show.SeatAvailability)
	e.index = make(map[string]int, len(e.seats))
	for i, seat := range e.seats {
		e.index[seat.Id] = i
	}
	e.selection = nil
}

// Toggle selects or deselects a seat. Booked and unavailable seats return
// ErrSeatNotSelectable without any change.
func (e *Engine) Toggle(seatID string) error {
	if e.pending != nil {
		return ErrBookingInProgress
	}
	i, ok := e.index[seatID]
	if !ok {
		return ErrSeatNotFound
	}

	switch e.seats[i].Status {
	case model.SeatSelected:
		e.seats[i].Status = model.SeatAvailable
		e.removeFromSelection(seatID)
		return nil
	case model.SeatAvailable:
		if len(e.selection) >= MaxSelectedSeats {
			e.logger.Debug("selection limit reached", zap.String("seat", e.seats[i].SeatNumber))
			return ErrSelectionLimitExceeded
		}
		e.seats[i].Status = model.SeatSelected
		e.selection = append(e.selection, seatID)
		return nil
	default:
		return ErrSeatNotSelectable
	}
}

func (e *Engine) removeFromSelection(seatID string) {
	for i, id := range e.selection {
		if id == seatID {
			e.selection = append(e.selection[:i], e.selection[i+1:]...)
			return
		}
	}
}

// UnitPrice is the show price, or DefaultUnitPrice when the show has none.
func UnitPrice(show model.Show) decimal.Decimal {
	if show.Price != nil && show.Price.IsPositive() {
		return *show.Price
	}
	return DefaultUnitPrice
}

func (e *Engine) UnitPrice() decimal.Decimal {
	return UnitPrice(e.show)
}

// Total is the selection size times the unit price.
func (e *Engine) Total() decimal.Decimal {
	return e.UnitPrice().Mul(decimal.NewFromInt(int64(len(e.selection))))
}

// Prepare checks the booking preconditions and freezes the selection until
// Complete is called. Failed preconditions leave the engine untouched.
func (e *Engine) Prepare() (model.BookingPayload, error) {
	if e.pending != nil {
		return model.BookingPayload{}, ErrBookingInProgress
	}
	if len(e.selection) == 0 {
		return model.BookingPayload{}, ErrNoSeatsSelected
	}
	var session model.Session
	authenticated := false
	if e.sessions != nil {
		session, authenticated = e.sessions.Session()
	}
	if !authenticated || session.User == nil {
		return model.BookingPayload{}, ErrAuthenticationRequired
	}

	payload := model.BookingPayload{
		UserId:      session.User.Id,
		ShowId:      e.show.Id,
		SeatNumbers: make([]string, 0, len(e.selection)),
	}
	for _, id := range e.selection {
		payload.SeatNumbers = append(payload.SeatNumbers, e.seats[e.index[id]].SeatNumber)
	}
	e.pending = &payload
	return payload, nil
}

// Complete applies the outcome of the request started by Prepare. On success
// the selected seats become booked; on failure nothing changes.
func (e *Engine) Complete(err error) {
	if e.pending == nil {
		return
	}
	payload := e.pending
	e.pending = nil

	if err != nil {
		e.logger.Info("booking failed", zap.String("show_id", payload.ShowId), zap.Error(err))
		return
	}
	for _, id := range e.selection {
		e.seats[e.index[id]].Status = model.SeatBooked
	}
	e.selection = nil
	e.logger.Info("booking confirmed", zap.String("show_id", payload.ShowId), zap.Strings("seats", payload.SeatNumbers))
}

// Submit runs Prepare, sends the booking and applies the result.
func (e *Engine) Submit(ctx context.Context) (model.BookingConfirmation, error) {
	payload, err := e.Prepare()
	if err != nil {
		return model.BookingConfirmation{}, err
	}
	if e.booker == nil {
		e.Complete(errNoBooker)
		return model.BookingConfirmation{}, errNoBooker
	}
	confirmation, err := e.booker.BookTickets(ctx, payload)
	e.Complete(err)
	if err != nil {
		return model.BookingConfirmation{}, err
	}
	return confirmation, nil
}

// Submitting reports whether a booking request is in flight.
func (e *Engine) Submitting() bool {
	return e.pending != nil
}

func (e *Engine) Show() model.Show {
	return e.show
}

// HasSeats distinguishes a show without a seat layout from an empty selection.
func (e *Engine) HasSeats() bool {
	return len(e.seats) > 0
}

// Seats returns a copy of the grid in layout order.
func (e *Engine) Seats() []model.Seat {
	out := make([]model.Seat, len(e.seats))
	copy(out, e.seats)
	return out
}

// Selection returns the selected seats in selection order.
func (e *Engine) Selection() []model.Seat {
	out := make([]model.Seat, 0, len(e.selection))
	for _, id := range e.selection {
		out = append(out, e.seats[e.index[id]])
	}
	return out
}

func (e *Engine) Seat(seatID string) (model.Seat, bool) {
	i, ok := e.index[seatID]
	if !ok {
		return model.Seat{}, false
	}
	return e.seats[i], true
}

// SeatByNumber looks a seat up by its label, e.g. "A1".
func (e *Engine) SeatByNumber(number string) (model.Seat, bool) {
	return e.Seat(model.SeatID(e.show.Id, strings.TrimSpace(number)))
}

func (e *Engine) Rows() []Row {
	return Layout(e.seats)
}

// ConfirmationMessage prefers the API message and otherwise summarizes the
// booking.
func ConfirmationMessage(confirmation model.BookingConfirmation, seats int, total decimal.Decimal) string {
	if msg := strings.TrimSpace(confirmation.Message); msg != "" {
		return msg
	}
	return fmt.Sprintf("You've booked %d seat(s). Total: ₹%s.", seats, total.StringFixed(2))
}
