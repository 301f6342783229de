package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalytics/basalytics/internal/auth"
	"github.com/basalytics/basalytics/internal/logging"
	"github.com/basalytics/basalytics/internal/store"
)

func newAuthTestHandler(t *testing.T) (*AuthHandler, *auth.Service) {
	t.Helper()
	st := store.NewMemoryStore()
	tokens, err := auth.NewTokenService(context.Background(), st)
	require.NoError(t, err)
	svc := auth.NewService(st, tokens)
	_, err = svc.CreateAccount(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	return NewAuthHandler(svc, logging.New(slog.LevelError, "text")), svc
}

func TestHandleLogin(t *testing.T) {
	h, svc := newAuthTestHandler(t)

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username": "alice", "password": "hunter2"}`))
	w := httptest.NewRecorder()
	h.HandleLogin(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp loginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)

	claims, err := svc.Tokens().Verify(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.Subject)
}

func TestHandleLoginRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "wrong password", body: `{"username": "alice", "password": "wrong"}`, want: http.StatusUnauthorized},
		{name: "unknown user", body: `{"username": "nobody", "password": "hunter2"}`, want: http.StatusUnauthorized},
		{name: "not json", body: `{{{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newAuthTestHandler(t)
			r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.HandleLogin(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireTokenProtectsEndpoints(t *testing.T) {
	h, svc := newAuthTestHandler(t)

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	protected := auth.RequireToken(svc.Tokens(), h.HandleMe)

	// No token.
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	protected(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed token.
	r = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	protected(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token reaches the handler with the account id in context.
	r = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	protected(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}

func TestHandleLogoutInvalidatesToken(t *testing.T) {
	h, svc := newAuthTestHandler(t)

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	logout := auth.RequireToken(svc.Tokens(), h.HandleLogout)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	logout(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err = svc.Tokens().Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
