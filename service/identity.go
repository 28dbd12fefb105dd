package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"cinebooker-cli/model"
)

const (
	placeholderUserID   = "unknown"
	placeholderUsername = "User"
)

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// identityStrategy resolves the user behind a successful login.
type identityStrategy struct {
	name    string
	resolve func(loginResponse) (model.User, error)
}

var defaultIdentityStrategies = []identityStrategy{
	{name: "response", resolve: identityFromResponse},
	{name: "jwt-claims", resolve: identityFromJWTClaims},
	{name: "token-payload", resolve: identityFromTokenPayload},
}

// resolveIdentity walks the strategies in order and falls back to a
// placeholder user. It never fails.
func resolveIdentity(res loginResponse, strategies []identityStrategy) (model.User, string, []error) {
	var errs []error
	for _, strategy := range strategies {
		user, err := strategy.resolve(res)
		if err == nil {
			return user, strategy.name, errs
		}
		errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
	}
	return placeholderUser(), "placeholder", errs
}

func placeholderUser() model.User {
	return model.User{Id: placeholderUserID, Username: placeholderUsername}
}

func identityFromResponse(res loginResponse) (model.User, error) {
	if res.User == nil {
		return model.User{}, errors.New("response has no user")
	}
	return *res.User, nil
}

func identityFromJWTClaims(res loginResponse) (model.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(res.Token, claims); err != nil {
		return model.User{}, err
	}
	return userFromClaims(claims), nil
}

// identityFromTokenPayload decodes the middle token segment directly. It
// accepts tokens the jwt parser rejects, such as a missing alg header.
func identityFromTokenPayload(res loginResponse) (model.User, error) {
	parts := strings.Split(res.Token, ".")
	if len(parts) < 2 {
		return model.User{}, errors.New("token has no payload segment")
	}
	segment := strings.TrimRight(parts[1], "=")

	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(segment)
		if err != nil {
			return model.User{}, fmt.Errorf("decode payload: %w", err)
		}
	}

	claims := map[string]any{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return model.User{}, fmt.Errorf("parse payload: %w", err)
	}
	return userFromClaims(claims), nil
}

func userFromClaims(claims map[string]any) model.User {
	id := claimString(claims, "sub", "id")
	if id == "" {
		id = placeholderUserID
	}
	username := claimString(claims, "username")
	if username == "" {
		username = placeholderUsername
	}
	return model.User{
		Id:       id,
		Username: username,
		Email:    claimString(claims, "email"),
	}
}

func claimString(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
