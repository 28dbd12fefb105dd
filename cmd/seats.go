package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"cinebooker-cli/booking"
	"cinebooker-cli/model"
)

func newSeatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seats <showId>",
		Short: "Print the seat map of a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				show, err := loadShow(ctx, a, args[0])
				if err != nil {
					return err
				}
				engine := booking.NewEngine(show, nil, nil, a.logger)
				renderSeatGrid(cmd.OutOrStdout(), engine)
				return nil
			})
		},
	}
}

func newBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book <showId> <seat>...",
		Short: "Book one or more seats of a show",
		Example: `  cinebooker book 64f1c2 A1 A2
  cinebooker book 64f1c2 b7`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				show, err := loadShow(ctx, a, args[0])
				if err != nil {
					return err
				}
				engine := booking.NewEngine(show, a.sessions, a.client, a.logger)
				if err := selectSeats(engine, args[1:]); err != nil {
					return err
				}

				seats := len(engine.Selection())
				total := engine.Total()
				confirmation, err := engine.Submit(ctx)
				if errors.Is(err, booking.ErrAuthenticationRequired) {
					return fmt.Errorf("%w (run `cinebooker login` first)", err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), booking.ConfirmationMessage(confirmation, seats, total))
				return nil
			})
		},
	}
}

func loadShow(ctx context.Context, a *app, showID string) (model.Show, error) {
	show, err := a.client.GetShowByID(ctx, showID)
	if err != nil {
		return model.Show{}, err
	}
	if show == nil {
		return model.Show{}, fmt.Errorf("show %s not found", showID)
	}
	return *show, nil
}

// selectSeats toggles each requested seat once. Labels are matched
// case-insensitively and repeated labels are ignored.
func selectSeats(engine *booking.Engine, labels []string) error {
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		number := strings.ToUpper(strings.TrimSpace(label))
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true

		seat, ok := engine.SeatByNumber(number)
		if !ok {
			return fmt.Errorf("seat %s: %w", number, booking.ErrSeatNotFound)
		}
		if err := engine.Toggle(seat.Id); err != nil {
			if errors.Is(err, booking.ErrSeatNotSelectable) {
				return fmt.Errorf("seat %s is already booked", number)
			}
			return fmt.Errorf("seat %s: %w", number, err)
		}
	}
	return nil
}

func renderSeatGrid(out io.Writer, engine *booking.Engine) {
	if !engine.HasSeats() {
		fmt.Fprintln(out, "No seats are defined for this show.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false

	available := 0
	total := 0
	for _, row := range engine.Rows() {
		cells := table.Row{row.Label}
		for _, seat := range row.Seats {
			total++
			if seat.Status == model.SeatAvailable {
				available++
				cells = append(cells, seat.SeatNumber)
				continue
			}
			cells = append(cells, strings.Repeat("x", len(seat.SeatNumber)))
		}
		t.AppendRow(cells)
	}
	t.Render()

	fmt.Fprintf(out, "x = booked • %d of %d seats available • ₹%s per seat\n",
		available, total, engine.UnitPrice().StringFixed(2))
}
