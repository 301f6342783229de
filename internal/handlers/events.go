// Package handlers is the thin HTTP layer over the ingestion, query, and
// auth services.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/basalytics/basalytics/internal/event"
	"github.com/basalytics/basalytics/internal/ingest"
	"github.com/basalytics/basalytics/internal/logging"
	"github.com/basalytics/basalytics/internal/ratelimit"
	"github.com/basalytics/basalytics/internal/session"
	"github.com/basalytics/basalytics/internal/store"
)

// pixelPNG is a 1x1 transparent PNG.
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type eventPayload struct {
	Name       string                 `json:"name"`
	Properties map[string]event.Value `json:"properties"`
}

type EventHandler struct {
	ingest       *ingest.Service
	sessions     *session.Deriver
	limiter      ratelimit.RateLimiter
	maxBatchSize int
	logger       *logging.Logger
}

func NewEventHandler(svc *ingest.Service, sessions *session.Deriver, limiter ratelimit.RateLimiter, maxBatchSize int, logger *logging.Logger) *EventHandler {
	return &EventHandler{
		ingest:       svc,
		sessions:     sessions,
		limiter:      limiter,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// HandleEvents accepts a JSON array of events and ingests each one under the
// caller's derived session id.
func (h *EventHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allow(w, r) {
		return
	}

	var events []eventPayload
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		if errors.Is(err, event.ErrUnsupportedValue) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}
	if len(events) > h.maxBatchSize {
		http.Error(w, "too many events in one batch", http.StatusRequestEntityTooLarge)
		return
	}

	sessionID := h.sessions.FromRequest(r)
	for _, ev := range events {
		if err := h.ingest.Ingest(r.Context(), ev.Name, ev.Properties, sessionID); err != nil {
			if errors.Is(err, ingest.ErrReservedProperty) || errors.Is(err, store.ErrDuplicateProperty) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.logger.ErrorContext(r.Context(), "Failed to ingest event",
				"event", ev.Name, "error", err)
			http.Error(w, "failed to store event", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandlePixel ingests a tracking-pixel event with browser and platform
// derived from the user agent and answers with an uncacheable 1x1 PNG.
func (h *EventHandler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	properties := make(map[string]event.Value)
	ua := r.Header.Get("User-Agent")
	if browser := browserFromUA(ua); browser != "" {
		properties["browser"] = event.String(browser)
	}
	if platform := platformFromUA(ua); platform != "" {
		properties["platform"] = event.String(platform)
	}

	sessionID := h.sessions.FromRequest(r)
	if err := h.ingest.Ingest(r.Context(), "tracking-pixel", properties, sessionID); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to ingest pixel event", "error", err)
		// Still serve the pixel; the client cannot do anything about it.
	}

	w.Header().Set("Content-Type", "image/png")
	// Do not cache, every request is a tracked view.
	w.Header().Set("Cache-Control", "no-store")
	w.Write(pixelPNG)
}

func (h *EventHandler) allow(w http.ResponseWriter, r *http.Request) bool {
	allowed, err := h.limiter.Allow(r.Context(), h.sessions.ClientIP(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "Rate limiter unavailable, allowing request", "error", err)
		return true
	}
	if !allowed {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}
