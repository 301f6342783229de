package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basalytics/basalytics/internal/auth"
	"github.com/basalytics/basalytics/internal/handlers"
	"github.com/basalytics/basalytics/internal/ingest"
	"github.com/basalytics/basalytics/internal/logging"
	"github.com/basalytics/basalytics/internal/ratelimit"
	"github.com/basalytics/basalytics/internal/server"
	"github.com/basalytics/basalytics/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analytics server",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Initialize structured logging
		logger := logging.New(
			logging.ParseLevel(cfg.Logging.Level),
			cfg.Logging.Format,
		)
		logging.SetDefault(logger)

		slog.Info("Starting basalytics",
			slog.Int("port", cfg.Server.Port),
			slog.String("database", cfg.Database.Type),
			slog.String("log_level", cfg.Logging.Level),
		)

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
		if cfg.Database.Type == "memory" {
			slog.Warn("Using in-memory store (development only)")
		} else {
			slog.Info("Connected to PostgreSQL",
				slog.String("host", cfg.Database.Host),
				slog.Int("port", cfg.Database.Port),
				slog.String("database", cfg.Database.Database),
			)
		}

		// Rate limiter for the public tracking endpoints.
		var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
		if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
			redisLimiter, err := ratelimit.NewRedisRateLimiter(
				cfg.Redis.URL,
				cfg.Ingestion.RateLimitRequests,
				cfg.Ingestion.RateLimitWindow,
			)
			if err != nil {
				slog.Warn("Failed to initialize rate limiter, continuing without",
					slog.String("error", err.Error()))
			} else {
				limiter = redisLimiter
				slog.Info("Rate limiting enabled",
					slog.Int("requests", cfg.Ingestion.RateLimitRequests),
					slog.Duration("window", cfg.Ingestion.RateLimitWindow),
				)
			}
		}
		defer limiter.Close()

		// Session identity: process-wide rotating day code.
		sessions := session.NewDeriver(session.Config{
			Salt:              cfg.Session.Salt,
			ForwardedIPHeader: cfg.Session.ForwardedIPHeader,
		})

		tokens, err := auth.NewTokenService(ctx, st)
		if err != nil {
			return fmt.Errorf("failed to initialize token service: %w", err)
		}
		authService := auth.NewService(st, tokens)
		ingestService := ingest.NewService(st)

		router := server.NewRouter(
			handlers.NewEventHandler(ingestService, sessions, limiter, cfg.Ingestion.MaxBatchSize, logger),
			handlers.NewQueryHandler(st, logger),
			handlers.NewAuthHandler(authService, logger),
			tokens,
		)

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		slog.Info("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
