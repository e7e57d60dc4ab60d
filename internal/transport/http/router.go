// Package httptransport mounts the contact API behind the shared middleware.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	contacthandler "contactlink/internal/contact/handler"
	"contactlink/internal/platform/metrics"
	ratelimitmw "contactlink/internal/ratelimit/middleware"
	"contactlink/pkg/platform/httputil"
	"contactlink/pkg/platform/middleware/metadata"
	"contactlink/pkg/platform/middleware/request"
	"contactlink/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is ready to serve.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router mounts.
type Deps struct {
	Logger      *slog.Logger
	Contacts    *contacthandler.Handler
	RateLimit   *ratelimitmw.Middleware
	HTTPMetrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Readiness checks keyed by dependency name.
	Readiness map[string]HealthCheck
}

const readinessTimeout = 2 * time.Second

// NewRouter wires every public endpoint behind the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger, d.HTTPMetrics))
	r.Use(request.Recovery(d.Logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(d.Readiness, d.Logger))
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}

	d.Contacts.Register(r)
	if d.RateLimit != nil {
		d.Contacts.RegisterIdentify(r, d.RateLimit.RateLimit("identify"))
	} else {
		d.Contacts.RegisterIdentify(r)
	}
	return r
}

func readinessHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = "unavailable"
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
