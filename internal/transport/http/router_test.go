package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicRoutes struct{}

func (panicRoutes) Register(r chi.Router) {
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func TestRouterRecoversPanicWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	router := NewRouter(logger, nil, panicRoutes{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "req-42")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	// The request ID must be assigned before the recovery layer so the
	// panic log line carries it.
	var entry map[string]any
	require.NoError(t, json.NewDecoder(&buf).Decode(&entry))
	assert.Equal(t, "panic in handler", entry["msg"])
	assert.Equal(t, "req-42", entry["request_id"])
}

func TestRouterHealth(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("ok when all checks pass", func(t *testing.T) {
		router := NewRouter(logger, map[string]HealthCheck{
			"db": func(context.Context) error { return nil },
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "ok", body["db"])
	})

	t.Run("degraded when a check fails", func(t *testing.T) {
		router := NewRouter(logger, map[string]HealthCheck{
			"db":    func(context.Context) error { return nil },
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "connection refused", body["redis"])
	})
}
