package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actionplan/internal/attachment"
	"actionplan/internal/audit/handler"
	"actionplan/internal/audit/service"
	"actionplan/internal/audit/store"
	"actionplan/internal/platform/metrics"
	"actionplan/internal/platform/middleware"
)

type pingRoute struct{}

func (pingRoute) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func newTestRouter(t *testing.T, health map[string]HealthCheck, routes ...RouteRegistrar) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	files := attachment.NewMemoryStore("http://localhost:8080")
	return NewRouter(Deps{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		MaxUploadBytes: 1 << 20,
		Files:          files.Handler(),
		Health:         health,
		Routes:         routes,
	})
}

func TestHealthz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"gateway": func(context.Context) error { return nil },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"gateway":"ok"}}`, rec.Body.String())
	})

	t.Run("failing check degrades", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"gateway": func(context.Context) error { return errors.New("connection refused") },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "connection refused", body.Checks["gateway"])
	})
}

func TestMetricsEndpointExposesRequestCounts(t *testing.T) {
	router := newTestRouter(t, nil, pingRoute{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `actionplan_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}

func TestResponsesCarryRequestID(t *testing.T) {
	router := newTestRouter(t, nil, pingRoute{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_found"`)
}

func TestAttachmentIsServedUnderFiles(t *testing.T) {
	gw := store.NewMemory()
	files := attachment.NewMemoryStore("")
	svc := service.New(gw, gw, service.WithFileStore(files))
	router := NewRouter(Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gatherer: prometheus.NewRegistry(),
		Files:    files.Handler(),
		Routes:   []RouteRegistrar{handler.New(svc, nil)},
	})

	url, err := files.Store(context.Background(), "owner", "note.txt", []byte("hello"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/files/owner/"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}
