package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newCORSHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSAllowedOrigins(t *testing.T) {
	tests := []struct {
		name      string
		allowed   []string
		origin    string
		wantAllow string
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "https://example.com", wantAllow: "https://example.com"},
		{name: "exact match", allowed: []string{"https://example.com"}, origin: "https://example.com", wantAllow: "https://example.com"},
		{name: "exact mismatch", allowed: []string{"https://example.com"}, origin: "https://evil.com", wantAllow: ""},
		{name: "subdomain wildcard", allowed: []string{"*.example.com"}, origin: "https://app.example.com", wantAllow: "https://app.example.com"},
		{name: "subdomain mismatch", allowed: []string{"*.example.com"}, origin: "https://example.org", wantAllow: ""},
		{name: "no origin header", allowed: []string{"*"}, origin: "", wantAllow: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newCORSHandler(CORSConfig{
				AllowedOrigins: tt.allowed,
				AllowedMethods: []string{http.MethodPost},
				AllowedHeaders: []string{"Content-Type"},
			})

			r := httptest.NewRequest(http.MethodPost, "/api/event", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newCORSHandler(CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	})

	r := httptest.NewRequest(http.MethodOptions, "/api/event", nil)
	r.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// Preflight short-circuits before the wrapped handler.
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}
