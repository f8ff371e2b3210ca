package echo_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	httpecho "github.com/mohammadpnp/bulk-import/internal/interfaces/http/echo"
)

type fakeArchive struct {
	errs []failure.ProcessedError
	err  error
}

func (f *fakeArchive) ListByJob(ctx context.Context, jobID string) ([]failure.ProcessedError, error) {
	return f.errs, f.err
}

func newErrorServer(registry *failure.Handler, archive httpecho.ErrorArchive) *echo.Echo {
	e := echo.New()
	httpecho.RegisterRoutes(e, httpecho.NewImportHandler(&fakeQueue{}), httpecho.NewErrorHandler(registry, archive))
	return e
}

func TestListJobErrors(t *testing.T) {
	t.Parallel()

	registry := failure.NewHandler()
	ectx := failure.ErrorContext{JobID: "job-1", TenantID: "tenant-1", Operation: "process_batch"}
	registry.HandleError(errors.New("dial tcp: connection refused"), ectx.WithBatch(2))
	registry.HandleError(failure.Errorf(failure.TypeValidation, "bad email"), ectx.WithRecord(7))
	registry.HandleError(errors.New("other job"), failure.ErrorContext{JobID: "job-2"})

	e := newErrorServer(registry, nil)
	rec, got := doJSON(t, e, http.MethodGet, "/api/v1/imports/job-1/errors", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, _ := got["data"].(map[string]any)
	items, _ := data["errors"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 errors, got %#v", data["errors"])
	}
	first, _ := items[0].(map[string]any)
	if _, leaked := first["message"]; leaked {
		t.Fatalf("raw message must not be exposed: %#v", first)
	}
	if first["user_message"] == "" || first["user_message"] == nil {
		t.Fatalf("expected user message, got %#v", first)
	}
	stats, _ := data["stats"].(map[string]any)
	if stats["total_errors"] != float64(2) {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if _, ok := data["archived"]; ok {
		t.Fatalf("expected no archived section without an archive")
	}
}

func TestListJobErrorsWithArchive(t *testing.T) {
	t.Parallel()

	archive := &fakeArchive{errs: []failure.ProcessedError{{
		ID:          "err-1",
		Type:        failure.TypeDatabase,
		Severity:    failure.SeverityCritical,
		UserMessage: "A storage error occurred.",
		Context:     failure.ErrorContext{JobID: "job-1"},
	}}}
	e := newErrorServer(failure.NewHandler(), archive)

	rec, got := doJSON(t, e, http.MethodGet, "/api/v1/imports/job-1/errors", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, _ := got["data"].(map[string]any)
	archived, _ := data["archived"].([]any)
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived error, got %#v", data["archived"])
	}
}

func TestListJobErrorsArchiveFailure(t *testing.T) {
	t.Parallel()

	e := newErrorServer(failure.NewHandler(), &fakeArchive{err: errors.New("redis down")})
	rec, _ := doJSON(t, e, http.MethodGet, "/api/v1/imports/job-1/errors", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGlobalErrorStats(t *testing.T) {
	t.Parallel()

	registry := failure.NewHandler()
	registry.HandleError(errors.New("permission denied"), failure.ErrorContext{JobID: "job-1"})
	registry.HandleError(errors.New("connection reset"), failure.ErrorContext{JobID: "job-2"})

	e := newErrorServer(registry, nil)
	rec, got := doJSON(t, e, http.MethodGet, "/api/v1/errors/stats", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, _ := got["data"].(map[string]any)
	if data["total_errors"] != float64(2) || data["affected_jobs"] != float64(2) {
		t.Fatalf("unexpected stats: %#v", data)
	}
}
