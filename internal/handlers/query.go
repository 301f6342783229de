package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/basalytics/basalytics/internal/logging"
	"github.com/basalytics/basalytics/internal/metrics"
	"github.com/basalytics/basalytics/internal/query"
	"github.com/basalytics/basalytics/internal/store"
)

type QueryHandler struct {
	store  store.EventStore
	logger *logging.Logger
}

func NewQueryHandler(st store.EventStore, logger *logging.Logger) *QueryHandler {
	return &QueryHandler{store: st, logger: logger}
}

type countResponse struct {
	Count int64 `json:"count"`
}

// HandleQuery runs a counting query: a date window plus an optional boolean
// filter over properties. Malformed payloads are rejected before the store
// is touched.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params, err := req.Params()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	count, err := h.store.CountEvents(r.Context(), params)
	if err != nil {
		metrics.QueryErrors.Inc()
		if errors.Is(err, query.ErrParse) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(r.Context(), "Query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(countResponse{Count: count})
}
