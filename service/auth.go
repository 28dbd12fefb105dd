package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"cinebooker-cli/logging"
	"cinebooker-cli/model"
)

const duplicateAccountMessage = "This username or email is already taken. Please try another."

var duplicateAccountHints = []string{"already exist", "username taken", "email taken", "duplicate"}

// SessionStore is the durable storage behind the session.
type SessionStore interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	LoadUser() (*model.User, error)
	SaveUser(user model.User) error
	ClearSession() error
}

// Sessions owns the process-wide session. Only Login, Restore and Logout
// mutate it; everything else reads it through Session or Token.
type Sessions struct {
	client     *Client
	store      SessionStore
	logger     *zap.Logger
	validate   *validator.Validate
	strategies []identityStrategy

	mu      sync.RWMutex
	current model.Session
}

func NewSessions(client *Client, store SessionStore, logger *zap.Logger) *Sessions {
	return &Sessions{
		client:     client,
		store:      store,
		logger:     logging.OrNop(logger),
		validate:   newValidator(),
		strategies: defaultIdentityStrategies,
	}
}

// Restore loads a previously persisted session. A missing or unreadable user
// profile leaves the token in place but the session unauthenticated.
func (s *Sessions) Restore() error {
	token, err := s.store.LoadToken()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		s.set(model.Session{})
		return nil
	}
	user, err := s.store.LoadUser()
	if err != nil {
		s.logger.Warn("stored user could not be read", zap.Error(err))
		user = nil
	}
	s.set(model.Session{Token: token, User: user})
	return nil
}

// Session returns a copy of the current session and whether it is authenticated.
func (s *Sessions) Session() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := s.current
	if current.User != nil {
		user := *current.User
		current.User = &user
	}
	return current, current.IsAuthenticated()
}

// Token implements TokenSource.
func (s *Sessions) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Login authenticates and persists the session. Missing identity metadata
// never fails a login.
func (s *Sessions) Login(ctx context.Context, credentials model.LoginPayload) (model.AuthToken, error) {
	if err := validateInput(s.validate, credentials); err != nil {
		return model.AuthToken{}, err
	}

	target := s.client.url("/auth/login")
	res, err := s.client.send(ctx, opLogin, target, RequestOptions{Method: http.MethodPost, Body: credentials}, false)
	if err != nil {
		return model.AuthToken{}, err
	}
	defer res.Body.Close()

	if !isSuccess(res.StatusCode) {
		message, _ := errorMessage(res.Body, statusFallback("Authentication failed", res))
		return model.AuthToken{}, &AuthError{Op: opLogin, Status: res.StatusCode, Message: message}
	}

	var payload loginResponse
	if err := decodeBody(res.Body, target, &payload); err != nil {
		return model.AuthToken{}, err
	}
	if strings.TrimSpace(payload.Token) == "" {
		return model.AuthToken{}, &MalformedResponseError{Endpoint: target, Reason: "login succeeded but no token was received"}
	}

	if err := s.store.SaveToken(payload.Token); err != nil {
		return model.AuthToken{}, fmt.Errorf("save token: %w", err)
	}

	user, source, misses := resolveIdentity(payload, s.strategies)
	if len(misses) > 0 {
		s.logger.Debug("identity strategies skipped", zap.String("resolved_by", source), zap.Errors("misses", misses))
	}
	if err := s.store.SaveUser(user); err != nil {
		s.logger.Warn("could not persist user profile", zap.Error(err))
	}

	s.set(model.Session{Token: payload.Token, User: &user})
	s.logger.Info("logged in", zap.String("user_id", user.Id), zap.String("identity_source", source))
	return model.AuthToken{Token: payload.Token, User: &user}, nil
}

// Register creates an account. It does not establish a session.
func (s *Sessions) Register(ctx context.Context, input model.RegisterPayload) (model.User, error) {
	if err := validateInput(s.validate, input); err != nil {
		return model.User{}, err
	}

	target := s.client.url("/auth/register")
	res, err := s.client.send(ctx, opRegister, target, RequestOptions{Method: http.MethodPost, Body: input}, false)
	if err != nil {
		return model.User{}, err
	}
	defer res.Body.Close()

	if !isSuccess(res.StatusCode) {
		message, _ := errorMessage(res.Body, statusFallback("Registration failed", res))
		if isDuplicateAccount(message) {
			message = duplicateAccountMessage
		}
		return model.User{}, &AuthError{Op: opRegister, Status: res.StatusCode, Message: message}
	}

	var user model.User
	if err := decodeBody(res.Body, target, &user); err != nil {
		return model.User{}, err
	}
	s.logger.Info("registered", zap.String("username", input.Username))
	return user, nil
}

// Logout clears the session from memory and storage. It is safe to call
// without a session.
func (s *Sessions) Logout() error {
	s.set(model.Session{})
	if err := s.store.ClearSession(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Sessions) set(session model.Session) {
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
}

func statusFallback(prefix string, res *http.Response) string {
	msg := fmt.Sprintf("%s. HTTP status: %d", prefix, res.StatusCode)
	if text := http.StatusText(res.StatusCode); text != "" {
		msg += " - " + text
	}
	return msg
}

func isDuplicateAccount(message string) bool {
	lower := strings.ToLower(message)
	for _, hint := range duplicateAccountHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

