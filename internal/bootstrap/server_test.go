package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	"github.com/mohammadpnp/bulk-import/internal/config"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopQueue struct{}

func (nopQueue) EnqueueJob(context.Context, domain.NewJob) (string, error) { return "job", nil }
func (nopQueue) GetJob(context.Context, string) (*domain.ImportJob, error) {
	return nil, domain.ErrJobNotFound
}
func (nopQueue) GetQueueStats(context.Context, string) (domain.QueueStats, error) {
	return domain.QueueStats{}, nil
}
func (nopQueue) RetryFailedJobs(context.Context, string) (int, error) { return 0, nil }

func newTestServer(checks map[string]HealthCheck) http.Handler {
	return NewHTTPServer(config.ServerConfig{BodyLimit: "1M"}, ServerDeps{
		Queue:    nopQueue{},
		Registry: failure.NewHandler(),
		Checks:   checks,
	})
}

func TestHealthz(t *testing.T) {
	server := newTestServer(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestHealthzDegraded(t *testing.T) {
	server := newTestServer(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(nil)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
