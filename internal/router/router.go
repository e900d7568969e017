package router

import (
	"net/http"

	"github.com/statsanytime/trade-bots/internal/handler"
	"github.com/statsanytime/trade-bots/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler       *handler.Handler
	TradesHandler *handler.TradesHandler
	OpsAuth       func(http.Handler) http.Handler
}

// New creates and configures the ops HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Ops-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// GUARDED routes
	r.Group(func(r chi.Router) {
		if cfg.OpsAuth != nil {
			r.Use(cfg.OpsAuth)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.TradesHandler != nil {
				r.Route("/trades", func(r chi.Router) {
					r.Get("/withdrawals", cfg.TradesHandler.ListWithdrawals)
					r.Get("/deposits", cfg.TradesHandler.ListDeposits)
					r.Get("/scheduled-deposits", cfg.TradesHandler.ListScheduledDeposits)
				})
				r.Post("/scheduler/sweep", cfg.TradesHandler.TriggerSweep)
			}
		})
	})

	return r
}
