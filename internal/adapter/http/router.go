package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/gotransfer/internal/adapter/http/handler"
	"github.com/iho/gotransfer/internal/adapter/http/middleware"
	"github.com/iho/gotransfer/internal/infrastructure/auth"
	"github.com/iho/gotransfer/internal/infrastructure/metrics"
	"github.com/iho/gotransfer/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransferHandler       *handler.TransferHandler
	AccountHandler        *handler.AccountHandler
	CompensationHandler   *handler.CompensationHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler
	// AuthHandler is mounted only when JWTManager is set.
	AuthHandler *handler.AuthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	// JWTManager enables bearer auth. Without it callers are identified by
	// the X-Account-ID header.
	JWTManager     *auth.JWTManager
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	var onAuthFailure func(string)
	if cfg.Metrics != nil {
		onAuthFailure = func(reason string) {
			cfg.Metrics.AuthFailures.WithLabelValues(reason).Inc()
		}
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTManager, onAuthFailure)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(authMiddleware.Authenticate)
		} else {
			r.Use(middleware.HeaderIdentity)
		}

		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Caller's own account
		r.Route("/account", func(r chi.Router) {
			r.Use(authMiddleware.RequireAccount)
			r.Get("/balance", cfg.TransferHandler.Balance)
			r.Post("/transfer", cfg.TransferHandler.Transfer)
		})

		// Operations
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAdmin)

			r.Route("/accounts", func(r chi.Router) {
				r.Post("/", cfg.AccountHandler.Open)
				r.Get("/", cfg.AccountHandler.List)
				r.Get("/{id}", cfg.AccountHandler.Get)
			})

			r.Get("/compensations", cfg.CompensationHandler.ListPending)
			r.Get("/reconciliation", cfg.ReconciliationHandler.Report)

			if cfg.JWTManager != nil && cfg.AuthHandler != nil {
				r.Post("/tokens", cfg.AuthHandler.IssueToken)
			}
		})

		if cfg.JWTManager != nil && cfg.AuthHandler != nil {
			r.Get("/me", cfg.AuthHandler.WhoAmI)
		}
	})

	return r
}
