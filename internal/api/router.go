package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	MaxConcurrent  int
	RequestTimeout time.Duration
}

func NewRouter(handler *Handler, health *HealthHandler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Probes and scrapes sit outside the limiter so they are never rejected
	// under load.
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)
		r.Use(NewConcurrencyLimiter(cfg.MaxConcurrent, logger).Middleware)
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/classify", handler.Classify)
			r.Post("/classify", handler.Classify)

			r.Get("/intents", handler.ListIntents)
			r.Get("/intents/{intent}/examples", handler.IntentExamples)
			r.Get("/intents/{intent}/layout", handler.IntentLayout)

			r.Get("/trending", handler.Trending)
			r.Get("/stats/intents", handler.IntentBreakdown)
			r.Get("/curation/unmatched", handler.UnmatchedQueries)
		})
	})

	return r
}
