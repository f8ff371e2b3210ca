package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

// JobStore keeps import jobs in process memory. It is used by tests and when
// no database is configured.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ImportJob
	now  func() time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*domain.ImportJob),
		now:  time.Now,
	}
}

// WithClock replaces the clock used for UpdatedAt and HeartbeatAt.
func (s *JobStore) WithClock(now func() time.Time) *JobStore {
	s.now = now
	return s
}

func (s *JobStore) Create(ctx context.Context, job *domain.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *job
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.jobs[job.ID] = &stored
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := *job
	return &out, nil
}

func (s *JobStore) NextPending(ctx context.Context) (*domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *domain.ImportJob
	for _, job := range s.jobs {
		if job.Status != domain.StatusPending {
			continue
		}
		if next == nil ||
			job.Priority > next.Priority ||
			(job.Priority == next.Priority && job.CreatedAt.Before(next.CreatedAt)) {
			next = job
		}
	}
	if next == nil {
		return nil, nil
	}
	out := *next
	return &out, nil
}

func (s *JobStore) Update(ctx context.Context, id string, update domain.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	update.Apply(job)
	job.UpdatedAt = s.now()
	return nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id string, progress domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	now := s.now()
	job.ProcessedRecords = progress.ProcessedRecords
	job.FailedRecords = progress.FailedRecords
	job.ProgressPercentage = progress.Percentage
	job.HeartbeatAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *JobStore) CountByStatus(ctx context.Context, tenantID string) (map[domain.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Status]int64)
	for _, job := range s.jobs {
		if tenantID != "" && job.TenantID != tenantID {
			continue
		}
		counts[job.Status]++
	}
	return counts, nil
}

func (s *JobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, job := range s.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		delete(s.jobs, id)
		deleted++
	}
	return deleted, nil
}

func (s *JobStore) ListFailed(ctx context.Context, tenantID string) ([]domain.ImportJob, error) {
	return s.list(func(job *domain.ImportJob) bool {
		return job.Status == domain.StatusFailed && (tenantID == "" || job.TenantID == tenantID)
	}), nil
}

func (s *JobStore) ListStaleProcessing(ctx context.Context, heartbeatBefore time.Time) ([]domain.ImportJob, error) {
	return s.list(func(job *domain.ImportJob) bool {
		if job.Status != domain.StatusProcessing {
			return false
		}
		return lastSeen(job).Before(heartbeatBefore)
	}), nil
}

func (s *JobStore) list(match func(*domain.ImportJob) bool) []domain.ImportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ImportJob, 0)
	for _, job := range s.jobs {
		if match(job) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func lastSeen(job *domain.ImportJob) time.Time {
	switch {
	case job.HeartbeatAt != nil:
		return *job.HeartbeatAt
	case job.StartedAt != nil:
		return *job.StartedAt
	default:
		return job.UpdatedAt
	}
}
