// Package auth enforces bearer-token checks on incoming requests.
//
// Validation here is shape-only: the middleware decodes the token and
// verifies it looks like a user identifier, but does not consult the store.
// Handlers that need a confirmed identity resolve the subject themselves.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/cycletrack/internal/token"
)

var errMissingToken = errors.New("missing bearer token")

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware provides HTTP middleware for bearer-token validation.
type Middleware struct {
	Skipper Skipper
}

// NewMiddleware constructs a middleware with optional skipper.
func NewMiddleware(skipper Skipper) Middleware {
	return Middleware{Skipper: skipper}
}

// Wrap wraps an http.Handler with token validation. The raw token is kept
// available to handlers through the request context subject.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := parseRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

func parseRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", token.ErrMalformedToken
	}
	return token.Decode(strings.TrimSpace(header[len("Bearer "):]))
}
