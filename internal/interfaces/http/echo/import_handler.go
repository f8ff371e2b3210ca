package echo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

var supportedFileTypes = map[string]bool{
	"csv":  true,
	"xlsx": true,
}

type ImportQueue interface {
	EnqueueJob(ctx context.Context, req domain.NewJob) (string, error)
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)
	GetQueueStats(ctx context.Context, tenantID string) (domain.QueueStats, error)
	RetryFailedJobs(ctx context.Context, tenantID string) (int, error)
}

type ImportHandler struct {
	queue ImportQueue
}

type createImportRequest struct {
	TenantID   string `json:"tenant_id"`
	UserID     string `json:"user_id"`
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	Priority   int    `json:"priority"`
	MaxRetries int    `json:"max_retries"`
}

type createImportResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type jobResponse struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenant_id"`
	UserID             string          `json:"user_id"`
	FileName           string          `json:"file_name"`
	FileType           string          `json:"file_type"`
	FileSize           int64           `json:"file_size"`
	Status             domain.Status   `json:"status"`
	Priority           int             `json:"priority"`
	TotalRecords       int64           `json:"total_records"`
	ProcessedRecords   int64           `json:"processed_records"`
	FailedRecords      int64           `json:"failed_records"`
	ProgressPercentage float64         `json:"progress_percentage"`
	RetryCount         int             `json:"retry_count"`
	MaxRetries         int             `json:"max_retries"`
	ErrorDetails       json.RawMessage `json:"error_details,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

type retryResponse struct {
	Requeued int `json:"requeued"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func NewImportHandler(queue ImportQueue) *ImportHandler {
	return &ImportHandler{queue: queue}
}

func (h *ImportHandler) CreateImport(c echo.Context) error {
	var req createImportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	fileType := strings.ToLower(strings.TrimSpace(req.FileType))
	if fileType == "" {
		fileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(req.FileName)), ".")
	}
	if !supportedFileTypes[strings.TrimPrefix(fileType, ".")] {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "invalid_file_type",
			Message: "file_type must be csv or xlsx",
		}})
	}

	jobID, err := h.queue.EnqueueJob(c.Request().Context(), domain.NewJob{
		TenantID:   req.TenantID,
		UserID:     req.UserID,
		FileName:   req.FileName,
		FilePath:   req.FilePath,
		FileType:   fileType,
		FileSize:   req.FileSize,
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingJobField) || errors.Is(err, domain.ErrInvalidJobField) {
			return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
				Code:    "invalid_request",
				Message: err.Error(),
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to enqueue import job",
		}})
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: createImportResponse{
		JobID:  jobID,
		Status: string(domain.StatusPending),
	}})
}

func (h *ImportHandler) GetImport(c echo.Context) error {
	job, err := h.queue.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
				Code:    "not_found",
				Message: "import job not found",
			}})
		}
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to get import job",
		}})
	}

	return c.JSON(http.StatusOK, apiResponse{Data: toJobResponse(job)})
}

func (h *ImportHandler) GetQueueStats(c echo.Context) error {
	stats, err := h.queue.GetQueueStats(c.Request().Context(), c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to get queue stats",
		}})
	}
	return c.JSON(http.StatusOK, apiResponse{Data: stats})
}

func (h *ImportHandler) RetryFailed(c echo.Context) error {
	requeued, err := h.queue.RetryFailedJobs(c.Request().Context(), c.QueryParam("tenant_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
			Code:    "internal_error",
			Message: "failed to retry import jobs",
		}})
	}
	return c.JSON(http.StatusOK, apiResponse{Data: retryResponse{Requeued: requeued}})
}

func toJobResponse(job *domain.ImportJob) jobResponse {
	out := jobResponse{
		ID:                 job.ID,
		TenantID:           job.TenantID,
		UserID:             job.UserID,
		FileName:           job.FileName,
		FileType:           job.FileType,
		FileSize:           job.FileSize,
		Status:             job.Status,
		Priority:           job.Priority,
		TotalRecords:       job.TotalRecords,
		ProcessedRecords:   job.ProcessedRecords,
		FailedRecords:      job.FailedRecords,
		ProgressPercentage: job.ProgressPercentage,
		RetryCount:         job.RetryCount,
		MaxRetries:         job.MaxRetries,
		CreatedAt:          job.CreatedAt,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
	}
	if details := strings.TrimSpace(job.ErrorDetails); details != "" {
		if json.Valid([]byte(details)) {
			out.ErrorDetails = json.RawMessage(details)
		} else {
			quoted, _ := json.Marshal(details)
			out.ErrorDetails = quoted
		}
	}
	return out
}
