package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client(), nil), server
}

func TestAuthorizedRequest_SetsHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Fatalf("unexpected accept header: %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatal("expected request id header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	})
	client.SetTokenSource(staticToken("tok-123"))

	var out map[string]any
	if err := client.AuthorizedRequest(context.Background(), "/ping", RequestOptions{}, &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ok, _ := out["ok"].(bool); !ok {
		t.Fatalf("unexpected payload: %+v", out)
	}
}

func TestAuthorizedRequest_KeepsExplicitAcceptAndSkipsEmptyToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/plain" {
			t.Fatalf("unexpected accept header: %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Fatalf("expected no authorization header, got %q", got)
		}
		_, _ = w.Write([]byte(`[]`))
	})
	client.SetTokenSource(staticToken(""))

	header := http.Header{}
	header.Set("Accept", "text/plain")
	var out []any
	if err := client.AuthorizedRequest(context.Background(), "/x", RequestOptions{Header: header}, &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestAuthorizedRequest_Non2xxUsesStructuredMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"seat A1 already booked"}`))
	})

	err := client.AuthorizedRequest(context.Background(), "/bookings", RequestOptions{Method: http.MethodPost, Body: map[string]string{"a": "b"}}, nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T %v", err, err)
	}
	if reqErr.Status != http.StatusConflict || reqErr.Message != "seat A1 already booked" {
		t.Fatalf("unexpected error: %+v", reqErr)
	}
}

func TestAuthorizedRequest_Non2xxFallsBackToStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	})

	err := client.AuthorizedRequest(context.Background(), "/fail", RequestOptions{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HTTP 500") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthorizedRequest_BlankMessageFallsBack(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"   "}`))
	})

	err := client.AuthorizedRequest(context.Background(), "/missing", RequestOptions{}, nil)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthorizedRequest_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	var out map[string]any
	err := client.AuthorizedRequest(context.Background(), "/movies", RequestOptions{}, &out)
	var badBody *MalformedResponseError
	if !errors.As(err, &badBody) {
		t.Fatalf("expected MalformedResponseError, got %T %v", err, err)
	}
}

func TestAuthorizedRequest_EmptyBodyIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var out map[string]any
	err := client.AuthorizedRequest(context.Background(), "/movies", RequestOptions{}, &out)
	var badBody *MalformedResponseError
	if !errors.As(err, &badBody) {
		t.Fatalf("expected MalformedResponseError, got %T %v", err, err)
	}
}

func TestAuthorizedRequest_TrailingDataIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","name":"x"}] <html>oops</html>`))
	})

	movies, err := client.GetMovies(context.Background())
	var badBody *MalformedResponseError
	if !errors.As(err, &badBody) {
		t.Fatalf("expected MalformedResponseError, got %T %v", err, err)
	}
	if badBody.Reason != "unexpected data after JSON body" {
		t.Fatalf("unexpected reason: %q", badBody.Reason)
	}
	if movies != nil {
		t.Fatalf("expected no movies, got %+v", movies)
	}
}

func TestAuthorizedRequest_TrailingWhitespaceIsAccepted(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[{\"id\":\"1\",\"name\":\"x\"}]\n\n"))
	})

	movies, err := client.GetMovies(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(movies) != 1 || movies[0].Name != "x" {
		t.Fatalf("unexpected movies: %+v", movies)
	}
}

func TestAuthorizedRequest_LargeErrorBodyKeepsMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"details":"` + strings.Repeat("x", 9000) + `","message":"seat A1 taken"}`))
	})

	err := client.AuthorizedRequest(context.Background(), "/bookings", RequestOptions{Method: http.MethodPost}, nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T %v", err, err)
	}
	if reqErr.Message != "seat A1 taken" {
		t.Fatalf("unexpected message: %q", reqErr.Message)
	}
}

func TestAuthorizedRequest_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(server.URL, server.Client(), nil)
	server.Close()

	err := client.AuthorizedRequest(context.Background(), "/bookings/movies", RequestOptions{}, nil)
	if !IsConnectivity(err) {
		t.Fatalf("expected ConnectivityError, got %T %v", err, err)
	}
	if !strings.Contains(err.Error(), "127.0.0.1") {
		t.Fatalf("expected host in message, got %v", err)
	}
}

func TestAuthorizedRequest_DoesNotRetry(t *testing.T) {
	var attempts int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if err := client.AuthorizedRequest(context.Background(), "/bookings", RequestOptions{Method: http.MethodPost}, nil); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestAuthorizedRequest_CanceledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.AuthorizedRequest(ctx, "/x", RequestOptions{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if IsConnectivity(err) {
		t.Fatal("cancellation must not be reported as connectivity error")
	}
	if got := UserMessage(err); got != "Request canceled." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestCompactErrorSnippet(t *testing.T) {
	if got := compactErrorSnippet("<!DOCTYPE html><p>x</p>"); got != "" {
		t.Fatalf("expected html to be dropped, got %q", got)
	}
	if got := compactErrorSnippet("  a \n b  "); got != "a b" {
		t.Fatalf("unexpected snippet: %q", got)
	}
	if got := compactErrorSnippet(strings.Repeat("x", 500)); len(got) != errorSnippetLength {
		t.Fatalf("expected truncation, got %d", len(got))
	}
}

func TestUserMessage_Validation(t *testing.T) {
	err := &ValidationError{}
	err.add("username", "is required")
	err.add("password", "must be at least 6 characters long")
	if got := UserMessage(err); got != "username is required; password must be at least 6 characters long" {
		t.Fatalf("unexpected message: %q", got)
	}
}
