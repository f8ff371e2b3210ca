package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

var terminalStatuses = []string{
	string(domain.StatusCompleted),
	string(domain.StatusCompletedWithErrors),
	string(domain.StatusFailed),
}

// ImportJobRepository is the Postgres implementation of importjob.Store.
type ImportJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	row := toModel(job)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	job.ID = row.ID
	job.CreatedAt = row.CreatedAt
	job.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *ImportJobRepository) Get(ctx context.Context, id string) (*domain.ImportJob, error) {
	var row models.ImportJob
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get import job: %w", err)
	}
	job := toDomain(row)
	return &job, nil
}

func (r *ImportJobRepository) NextPending(ctx context.Context) (*domain.ImportJob, error) {
	var row models.ImportJob
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.StatusPending)).
		Order("priority DESC, created_at ASC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("select next pending import job: %w", err)
	}
	job := toDomain(row)
	return &job, nil
}

func (r *ImportJobRepository) Update(ctx context.Context, id string, update domain.JobUpdate) error {
	return r.updateColumns(ctx, id, updateColumns(update))
}

// UpdateProgress also bumps heartbeat_at, which keeps the job's lease alive.
func (r *ImportJobRepository) UpdateProgress(ctx context.Context, id string, progress domain.Progress) error {
	return r.updateColumns(ctx, id, map[string]any{
		"processed_records":   progress.ProcessedRecords,
		"failed_records":      progress.FailedRecords,
		"progress_percentage": progress.Percentage,
		"heartbeat_at":        time.Now(),
	})
}

func (r *ImportJobRepository) updateColumns(ctx context.Context, id string, columns map[string]any) error {
	columns["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("update import job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *ImportJobRepository) CountByStatus(ctx context.Context, tenantID string) (map[domain.Status]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}

	query := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Select("status, COUNT(*) AS count").
		Group("status")
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count import jobs by status: %w", err)
	}

	counts := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		counts[domain.Status(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *ImportJobRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", terminalStatuses, cutoff).
		Delete(&models.ImportJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old import jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *ImportJobRepository) ListFailed(ctx context.Context, tenantID string) ([]domain.ImportJob, error) {
	query := r.db.WithContext(ctx).Where("status = ?", string(domain.StatusFailed))
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	return r.list(query)
}

func (r *ImportJobRepository) ListStaleProcessing(ctx context.Context, heartbeatBefore time.Time) ([]domain.ImportJob, error) {
	query := r.db.WithContext(ctx).Where(
		"status = ? AND COALESCE(heartbeat_at, started_at, updated_at) < ?",
		string(domain.StatusProcessing), heartbeatBefore,
	)
	return r.list(query)
}

func (r *ImportJobRepository) list(query *gorm.DB) ([]domain.ImportJob, error) {
	var rows []models.ImportJob
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, toDomain(row))
	}
	return jobs, nil
}

func updateColumns(u domain.JobUpdate) map[string]any {
	columns := make(map[string]any)
	if u.Status != nil {
		columns["status"] = string(*u.Status)
	}
	if u.StartedAt != nil {
		columns["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		columns["completed_at"] = *u.CompletedAt
	}
	if u.ClearCompletedAt {
		columns["completed_at"] = nil
	}
	if u.HeartbeatAt != nil {
		columns["heartbeat_at"] = *u.HeartbeatAt
	}
	if u.TotalRecords != nil {
		columns["total_records"] = *u.TotalRecords
	}
	if u.ProcessedRecords != nil {
		columns["processed_records"] = *u.ProcessedRecords
	}
	if u.FailedRecords != nil {
		columns["failed_records"] = *u.FailedRecords
	}
	if u.ProgressPercentage != nil {
		columns["progress_percentage"] = *u.ProgressPercentage
	}
	if u.RetryCount != nil {
		columns["retry_count"] = *u.RetryCount
	}
	if u.ErrorDetails != nil {
		columns["error_details"] = nullableText(*u.ErrorDetails)
	}
	return columns
}

func toModel(job *domain.ImportJob) models.ImportJob {
	return models.ImportJob{
		ID:                 job.ID,
		TenantID:           job.TenantID,
		UserID:             job.UserID,
		FileName:           job.FileName,
		FilePath:           job.FilePath,
		FileType:           job.FileType,
		FileSize:           job.FileSize,
		Status:             string(job.Status),
		Priority:           job.Priority,
		TotalRecords:       job.TotalRecords,
		ProcessedRecords:   job.ProcessedRecords,
		FailedRecords:      job.FailedRecords,
		ProgressPercentage: job.ProgressPercentage,
		RetryCount:         job.RetryCount,
		MaxRetries:         job.MaxRetries,
		ErrorDetails:       nullableText(job.ErrorDetails),
		HeartbeatAt:        job.HeartbeatAt,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		CreatedAt:          job.CreatedAt,
	}
}

func toDomain(row models.ImportJob) domain.ImportJob {
	job := domain.ImportJob{
		ID:                 row.ID,
		TenantID:           row.TenantID,
		UserID:             row.UserID,
		FileName:           row.FileName,
		FilePath:           row.FilePath,
		FileType:           row.FileType,
		FileSize:           row.FileSize,
		Status:             domain.Status(row.Status),
		Priority:           row.Priority,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
		StartedAt:          row.StartedAt,
		CompletedAt:        row.CompletedAt,
		HeartbeatAt:        row.HeartbeatAt,
		TotalRecords:       row.TotalRecords,
		ProcessedRecords:   row.ProcessedRecords,
		FailedRecords:      row.FailedRecords,
		ProgressPercentage: row.ProgressPercentage,
		RetryCount:         row.RetryCount,
		MaxRetries:         row.MaxRetries,
	}
	if row.ErrorDetails != nil {
		job.ErrorDetails = *row.ErrorDetails
	}
	return job
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
