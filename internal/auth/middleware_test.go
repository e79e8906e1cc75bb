package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/cycletrack/internal/token"
)

func TestWrapRejectsMissingAndMalformedTokens(t *testing.T) {
	middleware := NewMiddleware(nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a valid token")
	})
	wrapped := middleware.Wrap(next)

	cases := map[string]func(*http.Request){
		"no header":    func(r *http.Request) {},
		"wrong scheme": func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"bad token":    func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-token") },
	}

	for name, decorate := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/hr_data", nil)
		decorate(req)
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 got %d", name, rr.Code)
		}
	}
}

func TestWrapStoresSubjectOnContext(t *testing.T) {
	const userID = "123e4567-e89b-42d3-a456-426614174000"

	var seen string
	middleware := NewMiddleware(nil)
	wrapped := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/hr_data", nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue(userID))
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if seen != userID {
		t.Fatalf("expected subject %q got %q", userID, seen)
	}
}

func TestWrapHonorsSkipper(t *testing.T) {
	middleware := NewMiddleware(func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	})
	called := false
	wrapped := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if !called {
		t.Fatal("skipper path should bypass authentication")
	}
}
