package memory

import (
	"context"
	"sync"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

// RecordStore keeps imported records per job, keyed by row index. Writing the
// same row twice replaces it.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]map[int]domain.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]map[int]domain.Record)}
}

func (s *RecordStore) ProcessorFor(job domain.ImportJob) func(ctx context.Context, records []domain.Record, batchIndex int) (domain.BatchResult, error) {
	return func(ctx context.Context, records []domain.Record, batchIndex int) (domain.BatchResult, error) {
		result, err := s.ImportBatch(ctx, job.ID, records)
		result.BatchIndex = batchIndex
		return result, err
	}
}

func (s *RecordStore) ImportBatch(ctx context.Context, jobID string, records []domain.Record) (domain.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.BatchResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.records[jobID]
	if !ok {
		rows = make(map[int]domain.Record)
		s.records[jobID] = rows
	}

	var result domain.BatchResult
	for _, record := range records {
		if record.Blank() {
			delete(rows, record.Index)
			result.Errors++
			result.Failures = append(result.Failures, domain.RecordFailure{
				Record:  record,
				Message: domain.BlankRecordMessage,
				Index:   record.Index,
			})
			continue
		}
		rows[record.Index] = record
		result.Processed++
	}
	return result, nil
}

func (s *RecordStore) CountByJob(ctx context.Context, jobID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records[jobID])), nil
}

