package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cinebooker-cli/config"
	"cinebooker-cli/logging"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (compatible; CineBookerCLI/1.0)"
	errorBodyLimit     = 1 << 20
	errorSnippetLimit  = 8 << 10
	errorSnippetLength = 120

	opRequest  = "request"
	opLogin    = "login"
	opRegister = "register"
)

// TokenSource supplies the bearer token for authorized requests.
type TokenSource interface {
	Token() string
}

// Client wraps HTTP access to the booking API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	tokens     TokenSource
	logger     *zap.Logger
	requestID  func() string
}

// RequestOptions shapes a single AuthorizedRequest call.
type RequestOptions struct {
	Method string
	Header http.Header
	Body   any
}

// NewClient creates a new API client. If httpClient is nil, a default client is used.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultHTTPTimeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = config.DefaultAPIBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		logger:     logging.OrNop(logger),
		requestID:  uuid.NewString,
	}
}

// SetTokenSource attaches the session that authorizes requests.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AuthorizedRequest sends a JSON request with the current bearer token and
// decodes a 2xx body into out. out may be nil when the body is irrelevant.
func (c *Client) AuthorizedRequest(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	target := c.url(endpoint)
	res, err := c.send(ctx, opRequest, target, opts, true)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if !isSuccess(res.StatusCode) {
		fallback := "HTTP " + res.Status
		if strings.TrimSpace(res.Status) == "" {
			fallback = fmt.Sprintf("HTTP %d", res.StatusCode)
		}
		message, snippet := errorMessage(res.Body, fallback)
		c.logger.Debug("api error response",
			zap.String("url", target),
			zap.Int("status", res.StatusCode),
			zap.String("body", snippet),
		)
		return &RequestError{
			Status:   res.StatusCode,
			Message:  message,
			Endpoint: target,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return decodeBody(res.Body, target, out)
}

func (c *Client) send(ctx context.Context, op string, target string, opts RequestOptions, authorize bool) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range opts.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if authorize && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	requestID := c.requestID()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.Warn("request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("url", target),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, &ConnectivityError{Host: hostOf(target), Op: op, Err: err}
	}

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", target),
		zap.String("request_id", requestID),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// decodeBody requires the body to hold exactly one JSON value.
func decodeBody(body io.Reader, endpoint string, out any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &MalformedResponseError{Endpoint: endpoint, Reason: "empty response body", Err: err}
		}
		return &MalformedResponseError{Endpoint: endpoint, Err: err}
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return &MalformedResponseError{Endpoint: endpoint, Reason: "unexpected data after JSON body", Err: err}
	}
	return nil
}

// errorMessage extracts a "message" field from an error body, falling back to
// the given text when the body is not JSON or has no usable message. The
// second value is a compacted copy of the body for logging.
func errorMessage(body io.Reader, fallback string) (string, string) {
	raw, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	logged := raw
	if len(logged) > errorSnippetLimit {
		logged = logged[:errorSnippetLimit]
	}
	snippet := compactErrorSnippet(string(logged))
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if msg, ok := payload.Message.(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg), snippet
		}
	}
	return fallback, snippet
}

// compactErrorSnippet shortens a raw error body for logs, dropping HTML pages.
func compactErrorSnippet(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype") {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > errorSnippetLength {
		text = text[:errorSnippetLength]
	}
	return text
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return "the API server"
	}
	return u.Hostname()
}
