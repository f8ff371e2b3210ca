package importjob

import (
	"context"
	"time"
)

type Store interface {
	Create(ctx context.Context, job *ImportJob) error
	Get(ctx context.Context, id string) (*ImportJob, error)
	// NextPending returns the pending job with the highest priority, oldest first
	// on ties, or nil when the queue is empty.
	NextPending(ctx context.Context) (*ImportJob, error)
	Update(ctx context.Context, id string, update JobUpdate) error
	UpdateProgress(ctx context.Context, id string, progress Progress) error
	CountByStatus(ctx context.Context, tenantID string) (map[Status]int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListFailed(ctx context.Context, tenantID string) ([]ImportJob, error)
	ListStaleProcessing(ctx context.Context, heartbeatBefore time.Time) ([]ImportJob, error)
}
