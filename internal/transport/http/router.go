// Package httptransport assembles the HTTP surface: the shared middleware
// chain, operational endpoints and the action-plan routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"actionplan/internal/platform/metrics"
	"actionplan/internal/platform/middleware"
	dErrors "actionplan/pkg/domain-errors"
	"actionplan/pkg/platform/httputil"
)

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps carries what the router needs from main.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Files          http.Handler
	Health         map[string]HealthCheck
	Routes         []RouteRegistrar
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(d.Metrics))

	r.Get("/healthz", healthHandler(d.Health))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if d.Files != nil {
		r.Handle("/files/*", http.StripPrefix("/files", d.Files))
	}

	r.Group(func(r chi.Router) {
		if d.MaxUploadBytes > 0 {
			// Room for multipart framing around a maximal file.
			r.Use(middleware.MaxBytes(d.MaxUploadBytes + 1<<20))
		}
		for _, reg := range d.Routes {
			reg.Register(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": report})
	}
}
