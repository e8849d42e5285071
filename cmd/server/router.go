package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memberdir/internal/platform/metrics"
	"memberdir/internal/platform/middleware"
	"memberdir/pkg/platform/httputil"
)

type registrar interface {
	Register(r chi.Router)
}

type healthCheck func(ctx context.Context) error

type routerDeps struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	verifier middleware.TokenVerifier
	health   map[string]healthCheck
	handlers []registrar
}

// newRouter mounts the public probes and the authenticated API.
func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Latency(deps.metrics))

	r.Get("/healthz", handleHealth(deps.health))
	r.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))

	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(30 * time.Second))
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(deps.verifier, deps.logger))
		for _, h := range deps.handlers {
			h.Register(api)
		}
	})
	return r
}

// healthChecks starts the probe set; optional backends add themselves as
// they are connected.
func healthChecks(db *sql.DB) map[string]healthCheck {
	checks := map[string]healthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	return checks
}

func handleHealth(checks map[string]healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httputil.WriteJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": status})
	}
}
