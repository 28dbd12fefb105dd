package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cinebooker-cli/booking"
	"cinebooker-cli/model"
	"cinebooker-cli/service"
)

func newMoviesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "movies",
		Short: "List the movies now showing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				movies, err := a.client.GetMovies(ctx)
				if err != nil {
					return err
				}
				if err := a.store.SaveMovieCache(movies); err != nil {
					a.logger.Debug("movie cache not saved", zap.Error(err))
				}
				renderMovies(cmd.OutOrStdout(), movies)
				return nil
			})
		},
	}
}

func newShowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shows <movieId>",
		Short: "List the shows of a movie, earliest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				movie, err := a.client.GetMovieByID(ctx, args[0])
				if err != nil {
					return err
				}
				if movie == nil {
					return fmt.Errorf("movie %s not found", args[0])
				}
				shows, err := a.client.GetShowsByMovieID(ctx, movie.Id)
				if err != nil {
					return err
				}
				if len(shows) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No shows found for %s.\n", movie.Name)
					return nil
				}
				renderShows(cmd.OutOrStdout(), *movie, shows, resolveTheatres(ctx, a, shows))
				return nil
			})
		},
	}
}

// resolveTheatres fetches names for theatres the shows do not name. Lookup
// failures fall back to the theatre id.
func resolveTheatres(ctx context.Context, a *app, shows []model.Show) map[string]string {
	names := make(map[string]string)
	for _, show := range shows {
		if show.TheatreName != "" || show.TheatreId == "" {
			continue
		}
		if _, done := names[show.TheatreId]; done {
			continue
		}
		name, err := a.client.TheatreName(ctx, a.store, show.TheatreId)
		if err != nil {
			a.logger.Debug("theatre lookup failed", zap.String("theatre_id", show.TheatreId), zap.Error(err))
		}
		names[show.TheatreId] = name
	}
	return names
}

func renderMovies(out io.Writer, movies []model.Movie) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"ID", "Movie", "Genre", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 40},
	})
	for _, movie := range movies {
		t.AppendRow(table.Row{movie.Id, movie.Name, movie.Genre, movie.DurationLabel()})
	}
	t.Render()
}

func renderShows(out io.Writer, movie model.Movie, shows []model.Show, theatreNames map[string]string) {
	rowConfigAutoMerge := table.RowConfig{AutoMerge: true}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(movie.Name)
	t.AppendHeader(table.Row{"Theatre", "Show ID", "Starts", "Price", "Seats left"}, rowConfigAutoMerge)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true, WidthMax: 30},
	})
	for _, show := range shows {
		var theatre *model.Theatre
		if name := theatreNames[show.TheatreId]; name != "" {
			theatre = &model.Theatre{Id: show.TheatreId, Name: name}
		}
		t.AppendRow(table.Row{
			service.TheatreLabel(show, theatre),
			show.Id,
			showTimeLabel(show),
			"₹" + booking.UnitPrice(show).StringFixed(2),
			seatsLeftLabel(show),
		}, rowConfigAutoMerge)
	}
	t.Render()
}

func showTimeLabel(show model.Show) string {
	if t, ok := show.StartsAt(); ok {
		return t.Format("Mon 02 Jan 15:04")
	}
	if show.ShowTime != "" {
		return show.ShowTime
	}
	return "N/A"
}

func seatsLeftLabel(show model.Show) string {
	if len(show.SeatAvailability) == 0 {
		return "-"
	}
	left := 0
	for _, available := range show.SeatAvailability {
		if available {
			left++
		}
	}
	return fmt.Sprintf("%d/%d", left, len(show.SeatAvailability))
}
