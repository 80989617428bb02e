// Package httptransport assembles the engine's HTTP surface: the shared
// middleware chain, operational endpoints, and each domain handler's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gavel/internal/platform/middleware"
	"gavel/internal/transport/http/shared"
)

// Registrar is a domain handler that attaches its routes to the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter wires the middleware chain, health and metrics endpoints, and
// every domain handler.
func NewRouter(logger *slog.Logger, checks map[string]HealthCheck, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		shared.WriteJSON(w, status, result)
	}
}
