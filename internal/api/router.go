/**
 * @description
 * This file sets up the HTTP router for the credit-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * shared middleware stack.
 *
 * @dependencies
 * - net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/go-chi/cors: Routing and CORS.
 * - github.com/prometheus/client_golang: The /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the auth secrets and the metrics source for NewRouter.
type RouterConfig struct {
	JWTSecret      string
	InternalAPIKey string
	Gatherer       prometheus.Gatherer
}

// NewRouter creates a new Chi router and registers the credit-service routes.
func NewRouter(h *CreditScoreHandlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "apikey", "x-client-info", InternalAPIKeyHeader},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/credit-scores", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret, cfg.InternalAPIKey))

		r.Post("/calculate", h.CalculateCreditScoreHandler)
		r.Get("/{userID}", h.CreditScoreHistoryHandler)
		r.Get("/{userID}/latest", h.LatestCreditScoreHandler)
	})

	return r
}
