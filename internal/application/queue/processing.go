package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammadpnp/bulk-import/internal/application/batch"
	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

const (
	OperationLoadRecords = "load_records"
	OperationProcessJob  = "process_job"
)

// ProcessNext runs one tick of the poll loop: periodic maintenance, reclaim of
// stale jobs, then at most one pending job. It reports whether a job was
// processed. Overlapping calls return immediately.
func (m *Manager) ProcessNext(ctx context.Context) (processed bool) {
	if !m.ticking.CompareAndSwap(false, true) {
		return false
	}
	defer m.ticking.Store(false)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("import queue tick panicked", "panic", r)
			processed = false
		}
	}()

	m.maintain(ctx)
	m.reclaimStale(ctx)

	job, err := m.GetNextJob(ctx)
	if err != nil {
		m.logger.Error("get next import job failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	m.processJob(context.WithoutCancel(ctx), *job)
	return true
}

func (m *Manager) processJob(ctx context.Context, job domain.ImportJob) {
	logger := m.logger.With("job_id", job.ID, "tenant_id", job.TenantID)

	startedAt := m.now()
	if err := m.UpdateJobStatus(ctx, job.ID, domain.StatusProcessing, domain.JobUpdate{HeartbeatAt: &startedAt}); err != nil {
		logger.Error("mark import job processing failed", "error", err)
		return
	}
	job.Status = domain.StatusProcessing
	logger.Info("import job started", "file_name", job.FileName, "attempt", job.RetryCount+1)

	processor, ok := m.processor(job)
	if !ok {
		m.onProcessingError(ctx, job, failure.WithType(fmt.Errorf("%w: %q", ErrNoProcessor, job.FileType), failure.TypeFileFormat))
		return
	}

	ectx := failure.ErrorContext{JobID: job.ID, TenantID: job.TenantID, Operation: OperationLoadRecords}
	records, err := failure.Execute(ctx, m.executor, ectx, func(ctx context.Context) ([]domain.Record, error) {
		return m.loader.Load(ctx, job)
	})
	if err != nil {
		m.onProcessingError(ctx, job, fmt.Errorf("load records: %w", err))
		return
	}

	total := int64(len(records))
	var zero int64
	var percentage float64
	if err := m.store.Update(ctx, job.ID, domain.JobUpdate{
		TotalRecords:       &total,
		ProcessedRecords:   &zero,
		FailedRecords:      &zero,
		ProgressPercentage: &percentage,
	}); err != nil {
		m.onProcessingError(ctx, job, fmt.Errorf("store record count: %w", err))
		return
	}

	result, err := m.engine.ProcessInBatches(ctx, batch.JobRef{ID: job.ID, TenantID: job.TenantID}, records, processor)
	if err != nil {
		m.onProcessingError(ctx, job, fmt.Errorf("process batches: %w", err))
		return
	}

	m.finishJob(ctx, job, result)
}

func (m *Manager) finishJob(ctx context.Context, job domain.ImportJob, result *domain.ProcessingResult) {
	processed := int64(result.TotalProcessed)
	failed := int64(result.TotalErrors)
	percentage := 100.0
	update := domain.JobUpdate{
		ProcessedRecords:   &processed,
		FailedRecords:      &failed,
		ProgressPercentage: &percentage,
	}

	logger := m.logger.With("job_id", job.ID, "tenant_id", job.TenantID)

	switch {
	case result.TotalErrors == 0:
		cleared := ""
		update.ErrorDetails = &cleared
		if err := m.UpdateJobStatus(ctx, job.ID, domain.StatusCompleted, update); err != nil {
			logger.Error("complete import job failed", "error", err)
			return
		}
		logger.Info("import job completed", "records", result.TotalRecords, "duration", result.TotalTime)

	case result.TotalProcessed > 0:
		details := m.errorDetails(job.ID,
			fmt.Sprintf("%d of %d records could not be imported.", result.TotalErrors, result.TotalRecords), "")
		update.ErrorDetails = &details
		if err := m.UpdateJobStatus(ctx, job.ID, domain.StatusCompletedWithErrors, update); err != nil {
			logger.Error("complete import job with errors failed", "error", err)
			return
		}
		logger.Warn("import job completed with errors",
			"processed", result.TotalProcessed,
			"failed", result.TotalErrors,
			"duration", result.TotalTime,
		)

	default:
		m.onProcessingError(ctx, job, rejectedResultError(result))
	}
}

// rejectedResultError explains a run in which no record was imported.
func rejectedResultError(result *domain.ProcessingResult) error {
	for _, b := range result.Batches {
		if b.Failed && b.Err != nil {
			return fmt.Errorf("batch %d rejected: %w", b.BatchIndex, b.Err)
		}
	}
	return failure.Errorf(failure.TypeValidation, "all %d records were rejected", result.TotalRecords)
}

// onProcessingError requeues the job when its error is retryable and the job
// has retry budget left, and fails it otherwise.
func (m *Manager) onProcessingError(ctx context.Context, job domain.ImportJob, err error) {
	var pe *failure.ProcessedError
	if !errors.As(err, &pe) {
		registered := m.errors.HandleError(err, failure.ErrorContext{
			JobID:     job.ID,
			TenantID:  job.TenantID,
			Operation: OperationProcessJob,
		})
		pe = &registered
	}

	details := m.errorDetails(job.ID, pe.UserMessage, pe.Type)
	logger := m.logger.With("job_id", job.ID, "tenant_id", job.TenantID, "error_type", pe.Type, "error", err)

	if pe.Retryable && job.HasRetryBudget() {
		retryCount := job.RetryCount + 1
		if updateErr := m.UpdateJobStatus(ctx, job.ID, domain.StatusPending, domain.JobUpdate{
			RetryCount:   &retryCount,
			ErrorDetails: &details,
		}); updateErr != nil {
			logger.Error("requeue import job failed", "update_error", updateErr)
			return
		}
		logger.Warn("import job requeued", "retry_count", retryCount, "max_retries", job.MaxRetries)
		return
	}

	if updateErr := m.UpdateJobStatus(ctx, job.ID, domain.StatusFailed, domain.JobUpdate{
		ErrorDetails: &details,
	}); updateErr != nil {
		logger.Error("fail import job failed", "update_error", updateErr)
		return
	}
	logger.Error("import job failed", "retry_count", job.RetryCount)
}

type errorDetails struct {
	Message   string             `json:"message"`
	ErrorType failure.ErrorType  `json:"error_type,omitempty"`
	Stats     failure.ErrorStats `json:"stats"`
}

func (m *Manager) errorDetails(jobID string, message string, errorType failure.ErrorType) string {
	payload, err := json.Marshal(errorDetails{
		Message:   truncateReason(message),
		ErrorType: errorType,
		Stats:     m.errors.GetErrorStats(jobID),
	})
	if err != nil {
		return truncateReason(message)
	}
	return string(payload)
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
