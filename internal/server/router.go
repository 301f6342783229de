package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basalytics/basalytics/internal/auth"
	"github.com/basalytics/basalytics/internal/handlers"
	"github.com/basalytics/basalytics/internal/middleware"
)

// NewRouter constructs a ServeMux with all API routes registered.
func NewRouter(events *handlers.EventHandler, queries *handlers.QueryHandler, authHandler *handlers.AuthHandler, tokens *auth.TokenService) http.Handler {
	mux := http.NewServeMux()

	// Public tracking endpoints, CORS-open for the tracker script.
	trackingCORS := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	mux.Handle("/api/event", trackingCORS(http.HandlerFunc(events.HandleEvents)))
	mux.Handle("/t.png", trackingCORS(http.HandlerFunc(events.HandlePixel)))

	// Query and account endpoints.
	mux.HandleFunc("/api/query", auth.RequireToken(tokens, queries.HandleQuery))
	mux.HandleFunc("/api/auth/login", authHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", auth.RequireToken(tokens, authHandler.HandleLogout))
	mux.HandleFunc("/api/auth/me", auth.RequireToken(tokens, authHandler.HandleMe))

	// Health endpoints
	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/readyz", handlers.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
