package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"cinebooker-cli/model"
)

const showsFixture = `[
  {"id": "s2", "movieId": "m1", "theatreId": "t1", "showTime": "2026-02-03T21:00:00Z", "seatAvailability": {"A1": true}},
  {"id": "s1", "movieId": "m1", "theatreId": "t1", "theatreName": "Odeon", "showTime": "2026-02-03T18:30:00Z", "price": 220.5},
  {"id": "s3", "movieId": "m2", "theatreId": "t2", "showTime": "2026-02-04T10:00:00Z"},
  {"id": "s4", "movieId": "m1", "theatreId": "t2", "showTime": "later"}
]`

func TestGetMovies_OK(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bookings/movies" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
  {"id": "m1", "name": "Heat", "genre": "Crime", "duration": 10200000, "description": "LA", "posterUrl": ""},
  {"id": "m2", "name": "Alien", "genre": "Horror", "duration": 7020000}
]`))
	})

	movies, err := client.GetMovies(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(movies))
	}
	if movies[0].DurationLabel() != "2h 50m" {
		t.Fatalf("unexpected duration label: %s", movies[0].DurationLabel())
	}
}

func TestGetMovieByID_NotFoundReturnsNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": "m1", "name": "Heat"}]`))
	})

	movie, err := client.GetMovieByID(context.Background(), "m1")
	if err != nil || movie == nil || movie.Name != "Heat" {
		t.Fatalf("unexpected result: %+v (err %v)", movie, err)
	}
	movie, err = client.GetMovieByID(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if movie != nil {
		t.Fatalf("expected nil movie, got %+v", movie)
	}
}

func TestGetShowsByMovieID_FiltersAndSorts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bookings/shows" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(showsFixture))
	})

	shows, err := client.GetShowsByMovieID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var ids []string
	for _, show := range shows {
		ids = append(ids, show.Id)
	}
	if len(ids) != 3 || ids[0] != "s1" || ids[1] != "s2" || ids[2] != "s4" {
		t.Fatalf("unexpected order: %v", ids)
	}
	if shows[0].Price == nil || shows[0].Price.String() != "220.5" {
		t.Fatalf("unexpected price: %v", shows[0].Price)
	}
	if shows[1].Price != nil {
		t.Fatalf("expected nil price, got %v", shows[1].Price)
	}
}

func TestGetShowByID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(showsFixture))
	})

	show, err := client.GetShowByID(context.Background(), "s2")
	if err != nil || show == nil {
		t.Fatalf("unexpected result: %+v (err %v)", show, err)
	}
	if !show.SeatAvailability["A1"] {
		t.Fatalf("unexpected seat availability: %+v", show.SeatAvailability)
	}
	show, err = client.GetShowByID(context.Background(), "missing")
	if err != nil || show != nil {
		t.Fatalf("expected nil show, got %+v (err %v)", show, err)
	}
}

func TestGetTheatreByID_FirstElement(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bookings/theatres/t1":
			_, _ = w.Write([]byte(`[{"id": "t1", "name": "Odeon"}, {"id": "t9", "name": "Other"}]`))
		case "/bookings/theatres/t2":
			_, _ = w.Write([]byte(`[]`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	theatre, err := client.GetTheatreByID(context.Background(), "t1")
	if err != nil || theatre == nil || theatre.Name != "Odeon" {
		t.Fatalf("unexpected theatre: %+v (err %v)", theatre, err)
	}
	theatre, err = client.GetTheatreByID(context.Background(), "t2")
	if err != nil || theatre != nil {
		t.Fatalf("expected nil theatre, got %+v (err %v)", theatre, err)
	}
}

func TestBookTickets_PostsPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bookings" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type: %q", got)
		}
		var payload model.BookingPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.UserId != "u1" || payload.ShowId != "s1" || len(payload.SeatNumbers) != 2 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		_, _ = w.Write([]byte(`{"bookingId": "b-1", "message": "Booked"}`))
	})

	confirmation, err := client.BookTickets(context.Background(), model.BookingPayload{UserId: "u1", ShowId: "s1", SeatNumbers: []string{"A1", "A2"}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if confirmation.BookingId != "b-1" || confirmation.Message != "Booked" {
		t.Fatalf("unexpected confirmation: %+v", confirmation)
	}
}

func TestTheatreLabel(t *testing.T) {
	cases := []struct {
		show    model.Show
		theatre *model.Theatre
		want    string
	}{
		{model.Show{TheatreName: "Direct", TheatreId: "t1"}, &model.Theatre{Name: "Fetched"}, "Direct"},
		{model.Show{TheatreId: "t1"}, &model.Theatre{Name: "Fetched"}, "Fetched"},
		{model.Show{TheatreId: "t1"}, nil, "t1"},
		{model.Show{}, nil, "N/A"},
	}
	for _, tc := range cases {
		if got := TheatreLabel(tc.show, tc.theatre); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

type memoryTheatreCache struct {
	entries map[string]model.Theatre
	fresh   bool
	saved   int
}

func (c *memoryTheatreCache) LoadTheatreCache(theatreID string) (model.Theatre, bool, error) {
	theatre, ok := c.entries[theatreID]
	if !ok {
		return model.Theatre{}, false, nil
	}
	return theatre, c.fresh, nil
}

func (c *memoryTheatreCache) SaveTheatreCache(theatre model.Theatre) error {
	c.entries[theatre.Id] = theatre
	c.saved++
	return nil
}

func TestTheatreName_UsesFreshCache(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request: %s", r.URL.Path)
	})
	cache := &memoryTheatreCache{entries: map[string]model.Theatre{"t1": {Id: "t1", Name: "Cached"}}, fresh: true}

	name, err := client.TheatreName(context.Background(), cache, "t1")
	if err != nil || name != "Cached" {
		t.Fatalf("unexpected name %q (err %v)", name, err)
	}
}

func TestTheatreName_StaleCacheRefetches(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[{"id": "t1", "name": "Renamed"}]`))
	})
	cache := &memoryTheatreCache{entries: map[string]model.Theatre{"t1": {Id: "t1", Name: "Old"}}}

	name, err := client.TheatreName(context.Background(), cache, "t1")
	if err != nil || name != "Renamed" {
		t.Fatalf("unexpected name %q (err %v)", name, err)
	}
	if calls != 1 || cache.saved != 1 || cache.entries["t1"].Name != "Renamed" {
		t.Fatalf("expected one fetch and one save, got calls=%d saved=%d", calls, cache.saved)
	}
}

func TestTheatreName_UnknownTheatre(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	name, err := client.TheatreName(context.Background(), nil, "t404")
	if err != nil || name != "" {
		t.Fatalf("expected empty name, got %q (err %v)", name, err)
	}
}
