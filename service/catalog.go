package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"cinebooker-cli/model"
)

// GetMovies returns every movie in the catalog.
func (c *Client) GetMovies(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := c.AuthorizedRequest(ctx, "/bookings/movies", RequestOptions{}, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// GetMovieByID filters the movie list; the API has no single-movie endpoint.
// A nil movie with a nil error means it was not found.
func (c *Client) GetMovieByID(ctx context.Context, movieID string) (*model.Movie, error) {
	if strings.TrimSpace(movieID) == "" {
		return nil, errors.New("movie id is required")
	}
	movies, err := c.GetMovies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range movies {
		if movies[i].Id == movieID {
			return &movies[i], nil
		}
	}
	return nil, nil
}

func (c *Client) GetShows(ctx context.Context) ([]model.Show, error) {
	var shows []model.Show
	if err := c.AuthorizedRequest(ctx, "/bookings/shows", RequestOptions{}, &shows); err != nil {
		return nil, err
	}
	return shows, nil
}

// GetShowsByMovieID returns the shows of one movie ordered by show time.
// Shows with an unreadable time keep their relative order at the end.
func (c *Client) GetShowsByMovieID(ctx context.Context, movieID string) ([]model.Show, error) {
	if strings.TrimSpace(movieID) == "" {
		return nil, errors.New("movie id is required")
	}
	shows, err := c.GetShows(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []model.Show
	for _, show := range shows {
		if show.MovieId == movieID {
			filtered = append(filtered, show)
		}
	}
	SortShowsByTime(filtered)
	return filtered, nil
}

// GetShowByID returns nil when the show does not exist.
func (c *Client) GetShowByID(ctx context.Context, showID string) (*model.Show, error) {
	if strings.TrimSpace(showID) == "" {
		return nil, errors.New("show id is required")
	}
	shows, err := c.GetShows(ctx)
	if err != nil {
		return nil, err
	}
	for i := range shows {
		if shows[i].Id == showID {
			return &shows[i], nil
		}
	}
	return nil, nil
}

// GetTheatreByID returns the first theatre of the response array, or nil when
// the array is empty.
func (c *Client) GetTheatreByID(ctx context.Context, theatreID string) (*model.Theatre, error) {
	if strings.TrimSpace(theatreID) == "" {
		return nil, errors.New("theatre id is required")
	}
	endpoint := fmt.Sprintf("/bookings/theatres/%s", url.PathEscape(theatreID))
	var theatres []model.Theatre
	if err := c.AuthorizedRequest(ctx, endpoint, RequestOptions{}, &theatres); err != nil {
		return nil, err
	}
	if len(theatres) == 0 {
		return nil, nil
	}
	return &theatres[0], nil
}

// TheatreCache persists theatre lookups between runs.
type TheatreCache interface {
	LoadTheatreCache(theatreID string) (model.Theatre, bool, error)
	SaveTheatreCache(theatre model.Theatre) error
}

// TheatreName resolves a theatre's display name, preferring a fresh cache
// entry. An unknown theatre yields an empty name and no error. cache may be nil.
func (c *Client) TheatreName(ctx context.Context, cache TheatreCache, theatreID string) (string, error) {
	if cache != nil {
		if cached, fresh, err := cache.LoadTheatreCache(theatreID); err == nil && fresh && cached.Name != "" {
			return cached.Name, nil
		}
	}
	theatre, err := c.GetTheatreByID(ctx, theatreID)
	if err != nil || theatre == nil {
		return "", err
	}
	if cache != nil {
		if err := cache.SaveTheatreCache(*theatre); err != nil {
			c.logger.Debug("theatre cache not saved", zap.String("theatre_id", theatreID), zap.Error(err))
		}
	}
	return theatre.Name, nil
}

// BookTickets submits a booking. It is never retried.
func (c *Client) BookTickets(ctx context.Context, payload model.BookingPayload) (model.BookingConfirmation, error) {
	var confirmation model.BookingConfirmation
	err := c.AuthorizedRequest(ctx, "/bookings", RequestOptions{Method: http.MethodPost, Body: payload}, &confirmation)
	if err != nil {
		return model.BookingConfirmation{}, err
	}
	return confirmation, nil
}

// TheatreLabel picks the best display name for a show's theatre.
func TheatreLabel(show model.Show, theatre *model.Theatre) string {
	if name := strings.TrimSpace(show.TheatreName); name != "" {
		return name
	}
	if theatre != nil && strings.TrimSpace(theatre.Name) != "" {
		return theatre.Name
	}
	if id := strings.TrimSpace(show.TheatreId); id != "" {
		return id
	}
	return "N/A"
}

func SortShowsByTime(shows []model.Show) {
	sort.SliceStable(shows, func(i, j int) bool {
		a, okA := shows[i].StartsAt()
		b, okB := shows[j].StartsAt()
		switch {
		case okA && okB:
			return a.Before(b)
		case okA:
			return true
		default:
			return false
		}
	})
}
