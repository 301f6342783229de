package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/ingest"
	"github.com/basalytics/basalytics/internal/logging"
	"github.com/basalytics/basalytics/internal/query"
	"github.com/basalytics/basalytics/internal/ratelimit"
	"github.com/basalytics/basalytics/internal/session"
	"github.com/basalytics/basalytics/internal/store"
)

// denyAllLimiter refuses every request.
type denyAllLimiter struct{}

func (denyAllLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (denyAllLimiter) Close() error                                { return nil }

func newEventTestHandler(t *testing.T, limiter ratelimit.RateLimiter) (*EventHandler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	h := NewEventHandler(
		ingest.NewService(st),
		session.NewDeriver(session.Config{}),
		limiter,
		100,
		logging.New(slog.LevelError, "text"),
	)
	return h, st
}

func countByName(t *testing.T, st *store.MemoryStore, name string) int64 {
	t.Helper()
	count, err := st.CountEvents(context.Background(), query.Params{
		From:   time.Now().Add(-time.Hour),
		To:     time.Now().Add(time.Hour),
		Filter: query.Leaf(event.PropertyName, event.String(name)),
	})
	require.NoError(t, err)
	return count
}

func TestHandleEvents(t *testing.T) {
	h, st := newEventTestHandler(t, &ratelimit.NoOpRateLimiter{})

	body := `[
		{"name": "signup", "properties": {"plan": "pro", "seats": 5, "trial": false}},
		{"name": "pageview", "properties": {}}
	]`
	r := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(body))
	r.RemoteAddr = "203.0.113.7:54321"
	w := httptest.NewRecorder()

	h.HandleEvents(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(1), countByName(t, st, "signup"))
	assert.Equal(t, int64(1), countByName(t, st, "pageview"))
}

func TestHandleEventsRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "not json", body: `{{{`, want: http.StatusBadRequest},
		{name: "not an array", body: `{"name": "signup"}`, want: http.StatusBadRequest},
		{name: "null property value", body: `[{"name": "signup", "properties": {"plan": null}}]`, want: http.StatusBadRequest},
		{name: "float property value", body: `[{"name": "signup", "properties": {"seats": 5.5}}]`, want: http.StatusBadRequest},
		{name: "reserved property name", body: `[{"name": "signup", "properties": {"session": "x"}}]`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, st := newEventTestHandler(t, &ratelimit.NoOpRateLimiter{})

			r := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(tt.body))
			r.RemoteAddr = "203.0.113.7:54321"
			w := httptest.NewRecorder()

			h.HandleEvents(w, r)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, int64(0), countByName(t, st, "signup"))
		})
	}
}

func TestHandleEventsMethodNotAllowed(t *testing.T) {
	h, _ := newEventTestHandler(t, &ratelimit.NoOpRateLimiter{})

	r := httptest.NewRequest(http.MethodGet, "/api/event", nil)
	w := httptest.NewRecorder()
	h.HandleEvents(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleEventsBatchTooLarge(t *testing.T) {
	st := store.NewMemoryStore()
	h := NewEventHandler(
		ingest.NewService(st),
		session.NewDeriver(session.Config{}),
		&ratelimit.NoOpRateLimiter{},
		1,
		logging.New(slog.LevelError, "text"),
	)

	body := `[{"name": "a"}, {"name": "b"}]`
	r := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(body))
	r.RemoteAddr = "203.0.113.7:54321"
	w := httptest.NewRecorder()

	h.HandleEvents(w, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleEventsRateLimited(t *testing.T) {
	h, st := newEventTestHandler(t, denyAllLimiter{})

	r := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(`[{"name": "signup"}]`))
	r.RemoteAddr = "203.0.113.7:54321"
	w := httptest.NewRecorder()

	h.HandleEvents(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, int64(0), countByName(t, st, "signup"))
}

func TestHandleEventsSessionProperty(t *testing.T) {
	st := store.NewMemoryStore()
	deriver := session.NewDeriver(session.Config{})
	h := NewEventHandler(
		ingest.NewService(st),
		deriver,
		&ratelimit.NoOpRateLimiter{},
		100,
		logging.New(slog.LevelError, "text"),
	)

	send := func(remoteAddr string) {
		r := httptest.NewRequest(http.MethodPost, "/api/event", strings.NewReader(`[{"name": "pageview"}]`))
		r.RemoteAddr = remoteAddr
		r.Header.Set("User-Agent", "Mozilla/5.0")
		w := httptest.NewRecorder()
		h.HandleEvents(w, r)
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	send("203.0.113.7:1111")
	send("203.0.113.7:2222")
	send("203.0.113.8:3333")

	// Same client, same day: both events share a session id. The port does
	// not participate in the derivation.
	sameClient := deriver.Derive("203.0.113.7", "Mozilla/5.0")
	keys, err := st.LookupEventKeys(context.Background(), event.PropertySession, event.String(sameClient))
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	otherClient := deriver.Derive("203.0.113.8", "Mozilla/5.0")
	keys, err = st.LookupEventKeys(context.Background(), event.PropertySession, event.String(otherClient))
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestHandlePixel(t *testing.T) {
	h, st := newEventTestHandler(t, &ratelimit.NoOpRateLimiter{})

	r := httptest.NewRequest(http.MethodGet, "/t.png", nil)
	r.RemoteAddr = "203.0.113.7:54321"
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	w := httptest.NewRecorder()

	h.HandlePixel(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, pixelPNG, w.Body.Bytes())

	assert.Equal(t, int64(1), countByName(t, st, "tracking-pixel"))

	keys, err := st.LookupEventKeys(context.Background(), "browser", event.String("Chrome"))
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	keys, err = st.LookupEventKeys(context.Background(), "platform", event.String("Windows"))
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
