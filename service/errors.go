package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConnectivityError is returned when the request never reached the server.
type ConnectivityError struct {
	Host string
	Op   string
	Err  error
}

func (e *ConnectivityError) Error() string {
	if e == nil {
		return "connectivity error"
	}
	target := e.Host
	if target == "" {
		target = "the API server"
	}
	switch e.Op {
	case opLogin:
		target = "the authentication server at " + target
	case opRegister:
		target = "the registration server at " + target
	}
	return fmt.Sprintf("Unable to connect to %s. Please check your internet connection and try again. If the problem persists, the server may be unavailable.", target)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RequestError is returned when an authorized request gets a non-2xx response.
type RequestError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "request failed"
	}
	return e.Message
}

// AuthError is returned when login or registration is rejected by the server.
type AuthError struct {
	Op      string
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e == nil {
		return "authentication failed"
	}
	return e.Message
}

// MalformedResponseError is returned for a 2xx response whose body is unusable.
type MalformedResponseError struct {
	Endpoint string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return "malformed response"
	}
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	if reason == "" {
		reason = "unexpected response body"
	}
	return fmt.Sprintf("Malformed response from %s: %s", e.Endpoint, reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ValidationError reports invalid input detected before any request is sent.
type ValidationError struct {
	Fields map[string]string
	order  []string
}

func (e *ValidationError) add(field string, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.Fields[field] = message
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid input"
	}
	parts := make([]string, 0, len(e.order))
	for _, field := range e.order {
		parts = append(parts, field+" "+e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// IsConnectivity reports whether err means the server could not be reached.
func IsConnectivity(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

// IsUnauthorized reports whether the server rejected the credentials or token.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports whether the error represents a 404 from the API.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func statusOf(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	return 0
}

// UserMessage renders any client error as a single displayable line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "Request canceled."
	}
	var (
		connErr  *ConnectivityError
		reqErr   *RequestError
		authErr  *AuthError
		badBody  *MalformedResponseError
		inputErr *ValidationError
	)
	switch {
	case errors.As(err, &connErr):
		return connErr.Error()
	case errors.As(err, &authErr):
		return authErr.Error()
	case errors.As(err, &reqErr):
		return reqErr.Error()
	case errors.As(err, &badBody):
		return badBody.Error()
	case errors.As(err, &inputErr):
		return inputErr.Error()
	}
	return err.Error()
}
