package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

// RecordBulkRepository writes imported records with COPY. Every batch replaces
// the rows it covers, so a retried batch does not duplicate data.
type RecordBulkRepository struct {
	pool *pgxpool.Pool
}

func NewRecordBulkRepository(pool *pgxpool.Pool) *RecordBulkRepository {
	return &RecordBulkRepository{pool: pool}
}

// ProcessorFor returns a batch processor bound to job.
func (r *RecordBulkRepository) ProcessorFor(job domain.ImportJob) func(ctx context.Context, records []domain.Record, batchIndex int) (domain.BatchResult, error) {
	return func(ctx context.Context, records []domain.Record, batchIndex int) (domain.BatchResult, error) {
		result, err := r.ImportBatch(ctx, job.ID, job.TenantID, records)
		result.BatchIndex = batchIndex
		return result, err
	}
}

func (r *RecordBulkRepository) ImportBatch(ctx context.Context, jobID, tenantID string, records []domain.Record) (domain.BatchResult, error) {
	if len(records) == 0 {
		return domain.BatchResult{}, nil
	}

	result := domain.BatchResult{}
	rows := make([][]any, 0, len(records))
	indexes := make([]int64, 0, len(records))
	for _, record := range records {
		indexes = append(indexes, int64(record.Index))
		if record.Blank() {
			result.Errors++
			result.Failures = append(result.Failures, domain.RecordFailure{
				Record:  record,
				Message: domain.BlankRecordMessage,
				Index:   record.Index,
			})
			continue
		}

		payload, err := json.Marshal(record.Fields)
		if err != nil {
			return domain.BatchResult{}, failure.WithType(fmt.Errorf("encode record %d: %w", record.Index, err), failure.TypeFileFormat)
		}
		rows = append(rows, []any{jobID, tenantID, int64(record.Index), payload})
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.BatchResult{}, typedPgError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM import_records WHERE job_id = $1 AND row_index = ANY($2)",
		jobID, indexes,
	); err != nil {
		return domain.BatchResult{}, typedPgError(fmt.Errorf("clear import records: %w", err))
	}

	if len(rows) > 0 {
		copied, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"import_records"},
			[]string{"job_id", "tenant_id", "row_index", "payload"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return domain.BatchResult{}, typedPgError(fmt.Errorf("copy import records: %w", err))
		}
		result.Processed = int(copied)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.BatchResult{}, typedPgError(fmt.Errorf("commit import batch: %w", err))
	}

	return result, nil
}

func (r *RecordBulkRepository) CountByJob(ctx context.Context, jobID string) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM import_records WHERE job_id = $1", jobID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count import records: %w", err)
	}
	return count, nil
}

// typedPgError tags driver errors so they skip message matching.
func typedPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return failure.WithType(err, failure.TypeDatabase)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return failure.WithType(err, failure.TypeNetwork)
	}
	return err
}
