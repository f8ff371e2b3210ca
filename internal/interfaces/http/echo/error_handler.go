package echo

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammadpnp/bulk-import/internal/application/failure"
)

type ErrorRegistry interface {
	GetErrorsByJob(jobID string) []failure.ProcessedError
	GetErrorStats(jobID string) failure.ErrorStats
	GetGlobalStats() failure.GlobalStats
}

// ErrorArchive lists terminal errors that outlived the in-memory registry.
type ErrorArchive interface {
	ListByJob(ctx context.Context, jobID string) ([]failure.ProcessedError, error)
}

type ErrorHandler struct {
	registry ErrorRegistry
	archive  ErrorArchive
}

// errorResponse is the tenant-facing view of a ProcessedError. Raw error text
// stays in logs and the registry.
type errorResponse struct {
	ID          string            `json:"id"`
	Type        failure.ErrorType `json:"type"`
	Severity    failure.Severity  `json:"severity"`
	UserMessage string            `json:"user_message"`
	Operation   string            `json:"operation,omitempty"`
	BatchIndex  *int              `json:"batch_index,omitempty"`
	RecordIndex *int              `json:"record_index,omitempty"`
	Retryable   bool              `json:"retryable"`
	RetryCount  int               `json:"retry_count"`
	MaxRetries  int               `json:"max_retries"`
	Timestamp   time.Time         `json:"timestamp"`
}

type jobErrorsResponse struct {
	Errors   []errorResponse    `json:"errors"`
	Archived []errorResponse    `json:"archived,omitempty"`
	Stats    failure.ErrorStats `json:"stats"`
}

// NewErrorHandler builds the handler. archive may be nil.
func NewErrorHandler(registry ErrorRegistry, archive ErrorArchive) *ErrorHandler {
	return &ErrorHandler{registry: registry, archive: archive}
}

func (h *ErrorHandler) ListJobErrors(c echo.Context) error {
	jobID := c.Param("id")

	out := jobErrorsResponse{
		Errors: toErrorResponses(h.registry.GetErrorsByJob(jobID)),
		Stats:  h.registry.GetErrorStats(jobID),
	}

	if h.archive != nil {
		archived, err := h.archive.ListByJob(c.Request().Context(), jobID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
				Code:    "internal_error",
				Message: "failed to list archived import errors",
			}})
		}
		out.Archived = toErrorResponses(archived)
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ErrorHandler) GetGlobalStats(c echo.Context) error {
	return c.JSON(http.StatusOK, apiResponse{Data: h.registry.GetGlobalStats()})
}

func toErrorResponses(errs []failure.ProcessedError) []errorResponse {
	out := make([]errorResponse, 0, len(errs))
	for _, pe := range errs {
		out = append(out, errorResponse{
			ID:          pe.ID,
			Type:        pe.Type,
			Severity:    pe.Severity,
			UserMessage: pe.UserMessage,
			Operation:   pe.Context.Operation,
			BatchIndex:  pe.Context.BatchIndex,
			RecordIndex: pe.Context.RecordIndex,
			Retryable:   pe.Retryable,
			RetryCount:  pe.RetryCount,
			MaxRetries:  pe.MaxRetries,
			Timestamp:   pe.Context.Timestamp,
		})
	}
	return out
}
