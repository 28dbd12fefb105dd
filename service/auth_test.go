package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinebooker-cli/model"
	"cinebooker-cli/store"
)

func newTestSessions(t *testing.T, handler http.HandlerFunc) (*Sessions, *store.Store) {
	t.Helper()
	client, _ := newTestClient(t, handler)
	root := t.TempDir()
	st := store.New(filepath.Join(root, "config"), filepath.Join(root, "cache"))
	sessions := NewSessions(client, st, nil)
	client.SetTokenSource(sessions)
	return sessions, st
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestLogin_PersistsUserFromResponse(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Empty(t, r.Header.Get("Authorization"))

		var body model.LoginPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "neo", body.Username)

		writeJSON(w, http.StatusOK, map[string]any{
			"token": "opaque-token",
			"user":  map[string]string{"id": "u1", "username": "neo", "email": "neo@example.com"},
		})
	})

	auth, err := sessions.Login(context.Background(), model.LoginPayload{Username: "neo", Password: "matrix"})
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", auth.Token)
	assert.Equal(t, "u1", auth.User.Id)

	session, ok := sessions.Session()
	assert.True(t, ok)
	assert.Equal(t, "opaque-token", session.Token)
	assert.Equal(t, "opaque-token", sessions.Token())

	token, err := st.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
	user, err := st.LoadUser()
	require.NoError(t, err)
	assert.Equal(t, &model.User{Id: "u1", Username: "neo", Email: "neo@example.com"}, user)
}

func TestLogin_DecodesIdentityFromToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": float64(42), "username": "trinity", "email": "t@example.com"})
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	})

	auth, err := sessions.Login(context.Background(), model.LoginPayload{Username: "trinity", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, model.User{Id: "42", Username: "trinity", Email: "t@example.com"}, *auth.User)

	user, err := st.LoadUser()
	require.NoError(t, err)
	assert.Equal(t, "42", user.Id)
}

func TestLogin_PlaceholderIdentityWhenTokenIsOpaque(t *testing.T) {
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "not-a-jwt"})
	})

	auth, err := sessions.Login(context.Background(), model.LoginPayload{Username: "a", Password: "b"})
	require.NoError(t, err)
	assert.Equal(t, model.User{Id: "unknown", Username: "User"}, *auth.User)

	_, ok := sessions.Session()
	assert.True(t, ok)
}

func TestLogin_AuthenticationFailedWithMessage(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
	})

	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "neo", Password: "wrong"})
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "got %T %v", err, err)
	assert.Equal(t, "bad credentials", authErr.Error())
	assert.True(t, IsUnauthorized(err))

	token, _ := st.LoadToken()
	assert.Empty(t, token)
	_, ok := sessions.Session()
	assert.False(t, ok)
}

func TestLogin_AuthenticationFailedNonJSONBody(t *testing.T) {
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("nope"))
	})

	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "neo", Password: "wrong"})
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestLogin_ConnectivityError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(server.URL, server.Client(), nil)
	server.Close()
	root := t.TempDir()
	sessions := NewSessions(client, store.New(root, root), nil)

	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "neo", Password: "x"})
	require.True(t, IsConnectivity(err), "got %T %v", err, err)
	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "authentication server at 127.0.0.1")
}

func TestLogin_MissingTokenIsMalformed(t *testing.T) {
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})

	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "neo", Password: "x"})
	var badBody *MalformedResponseError
	require.True(t, errors.As(err, &badBody), "got %T %v", err, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestLogin_ValidatesBeforeNetwork(t *testing.T) {
	var calls int32
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "neo"})
	var inputErr *ValidationError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "is required", inputErr.Fields["password"])
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRegister_DoesNotCreateSession(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		writeJSON(w, http.StatusCreated, map[string]string{"id": "9", "username": "morpheus", "email": "m@example.com"})
	})

	user, err := sessions.Register(context.Background(), model.RegisterPayload{Username: "morpheus", Email: "m@example.com", Password: "zion123"})
	require.NoError(t, err)
	assert.Equal(t, "9", user.Id)

	_, ok := sessions.Session()
	assert.False(t, ok)
	token, _ := st.LoadToken()
	assert.Empty(t, token)
}

func TestRegister_ValidationErrors(t *testing.T) {
	var calls int32
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := sessions.Register(context.Background(), model.RegisterPayload{Username: "ab", Email: "nope", Password: "123"})
	var inputErr *ValidationError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "must be at least 3 characters long", inputErr.Fields["username"])
	assert.Equal(t, "must be a valid email address", inputErr.Fields["email"])
	assert.Equal(t, "must be at least 6 characters long", inputErr.Fields["password"])
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRegister_DuplicateAccountMessage(t *testing.T) {
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
	})

	_, err := sessions.Register(context.Background(), model.RegisterPayload{Username: "neo", Email: "n@example.com", Password: "matrix"})
	require.Error(t, err)
	assert.Equal(t, duplicateAccountMessage, err.Error())
}

func TestRegister_FallbackMessage(t *testing.T) {
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := sessions.Register(context.Background(), model.RegisterPayload{Username: "neo", Email: "n@example.com", Password: "matrix"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Registration failed. HTTP status: 502"), err.Error())
}

func TestLogout_IdempotentAndClearsStorage(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok"})
	})
	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "a", Password: "b"})
	require.NoError(t, err)

	require.NoError(t, sessions.Logout())
	require.NoError(t, sessions.Logout())

	token, err := st.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, token)
	user, err := st.LoadUser()
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Empty(t, sessions.Token())
}

func TestRestore_LoadsPersistedSession(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, st.SaveToken("persisted"))
	require.NoError(t, st.SaveUser(model.User{Id: "3", Username: "oracle"}))

	require.NoError(t, sessions.Restore())
	session, ok := sessions.Session()
	assert.True(t, ok)
	assert.Equal(t, "3", session.User.Id)
}

func TestRestore_TokenWithoutUserIsNotAuthenticated(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, st.SaveToken("persisted"))

	require.NoError(t, sessions.Restore())
	_, ok := sessions.Session()
	assert.False(t, ok)
	assert.Equal(t, "persisted", sessions.Token())
}

func TestSession_ReturnsCopy(t *testing.T) {
	sessions, st := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, st.SaveToken("persisted"))
	require.NoError(t, st.SaveUser(model.User{Id: "3"}))
	require.NoError(t, sessions.Restore())

	session, _ := sessions.Session()
	session.User.Id = "mutated"

	again, _ := sessions.Session()
	assert.Equal(t, "3", again.User.Id)
}

func TestAuthorizedRequest_UsesSessionToken(t *testing.T) {
	var seen atomic.Value
	sessions, _ := newTestSessions(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			writeJSON(w, http.StatusOK, map[string]string{"token": "fresh"})
			return
		}
		seen.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []any{})
	})
	_, err := sessions.Login(context.Background(), model.LoginPayload{Username: "a", Password: "b"})
	require.NoError(t, err)

	_, err = sessions.client.GetMovies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", seen.Load())
}

func rawToken(header string, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}
