// Package auth guards the host's WebSocket endpoint with a shared token.
//
// Origin checks stay in the transport; this only decides whether a peer may
// connect at all.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// TokenQueryParam carries the token for clients that cannot set headers on a
// WebSocket handshake.
const TokenQueryParam = "access_token"

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken is a validator for a single shared token.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// AllowAll accepts every token. Used when no token is configured.
var AllowAll Validator = FuncValidator(func(string) error { return nil })

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// TokenFromRequest reads the bearer header, falling back to the
// access_token query parameter.
func TokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	token := r.URL.Query().Get(TokenQueryParam)
	return token, token != ""
}

// CheckRequest validates the token carried by r.
func CheckRequest(v Validator, r *http.Request) error {
	token, _ := TokenFromRequest(r)
	return v.Validate(token)
}
