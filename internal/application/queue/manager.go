package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mohammadpnp/bulk-import/internal/application/batch"
	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/metrics"
)

var ErrNoProcessor = errors.New("no batch processor registered for file type")

// RecordLoader reads the data records of an uploaded file.
type RecordLoader interface {
	Load(ctx context.Context, job domain.ImportJob) ([]domain.Record, error)
}

// ProcessorFactory builds the batch processor for one job.
type ProcessorFactory func(job domain.ImportJob) batch.Processor

// StaticProcessor uses the same processor for every job.
func StaticProcessor(p batch.Processor) ProcessorFactory {
	return func(domain.ImportJob) batch.Processor { return p }
}

type Config struct {
	PollInterval        time.Duration
	LeaseTimeout        time.Duration
	DefaultMaxRetries   int
	MaintenanceInterval time.Duration
	ErrorMaxAge         time.Duration
	CleanupAfterDays    int
}

// Manager owns the import job lifecycle: it accepts jobs, polls the store for
// the next pending one and drives it through the batch engine. One job is in
// flight at a time.
type Manager struct {
	store    domain.Store
	loader   RecordLoader
	engine   *batch.Engine
	executor *failure.Executor
	errors   *failure.Handler
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	procMu     sync.RWMutex
	processors map[string]ProcessorFactory

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	ticking atomic.Bool

	lastMaintenance time.Time
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store domain.Store, loader RecordLoader, engine *batch.Engine, executor *failure.Executor, cfg Config, opts ...Option) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 10 * time.Minute
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = domain.DefaultMaxRetries
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = time.Hour
	}
	if cfg.ErrorMaxAge <= 0 {
		cfg.ErrorMaxAge = failure.DefaultMaxErrorAge
	}

	m := &Manager{
		store:      store,
		loader:     loader,
		engine:     engine,
		executor:   executor,
		errors:     executor.Handler(),
		cfg:        cfg,
		logger:     slog.Default(),
		now:        time.Now,
		processors: make(map[string]ProcessorFactory),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterProcessor sets the processor factory used for jobs of fileType.
func (m *Manager) RegisterProcessor(fileType string, factory ProcessorFactory) {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	m.processors[normalizeFileType(fileType)] = factory
}

func (m *Manager) processor(job domain.ImportJob) (batch.Processor, bool) {
	m.procMu.RLock()
	factory, ok := m.processors[normalizeFileType(job.FileType)]
	m.procMu.RUnlock()
	if !ok {
		return nil, false
	}
	p := factory(job)
	return p, p != nil
}

func normalizeFileType(fileType string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fileType)), ".")
}

// EnqueueJob stores a new pending job and makes sure the poll loop runs.
func (m *Manager) EnqueueJob(ctx context.Context, req domain.NewJob) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = m.cfg.DefaultMaxRetries
	}

	job := &domain.ImportJob{
		ID:         uuid.NewString(),
		TenantID:   req.TenantID,
		UserID:     req.UserID,
		FileName:   req.FileName,
		FilePath:   req.FilePath,
		FileType:   normalizeFileType(req.FileType),
		FileSize:   req.FileSize,
		Status:     domain.StatusPending,
		Priority:   req.Priority,
		CreatedAt:  m.now(),
		MaxRetries: maxRetries,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}

	metrics.JobsEnqueued.Inc()
	m.logger.Info("import job enqueued",
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"file_name", job.FileName,
		"file_type", job.FileType,
		"priority", job.Priority,
	)

	m.StartProcessing(ctx)
	return job.ID, nil
}

func (m *Manager) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	return m.store.Get(ctx, id)
}

// GetNextJob returns the pending job with the highest priority, oldest first,
// or nil when the queue is empty.
func (m *Manager) GetNextJob(ctx context.Context) (*domain.ImportJob, error) {
	job, err := m.store.NextPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch next pending job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus moves a job to status and applies the other fields of update.
// StartedAt is stamped when a job starts processing and CompletedAt when it
// reaches a terminal status. Rewriting the current status keeps both stamps.
func (m *Manager) UpdateJobStatus(ctx context.Context, id string, status domain.Status, update domain.JobUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidJobField, status)
	}

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(job.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, status)
	}

	now := m.now()
	update.Status = &status
	if status == domain.StatusProcessing && job.Status != domain.StatusProcessing && update.StartedAt == nil {
		update.StartedAt = &now
	}
	if status.IsTerminal() && job.Status != status && update.CompletedAt == nil {
		update.CompletedAt = &now
	}

	if err := m.store.Update(ctx, id, update); err != nil {
		return fmt.Errorf("update import job %s: %w", id, err)
	}
	if status != job.Status && (status.IsTerminal() || status == domain.StatusPending) {
		metrics.JobsFinished.WithLabelValues(string(status)).Inc()
	}
	return nil
}

// GetQueueStats counts jobs per status. An empty tenantID counts all tenants.
func (m *Manager) GetQueueStats(ctx context.Context, tenantID string) (domain.QueueStats, error) {
	counts, err := m.store.CountByStatus(ctx, tenantID)
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("count import jobs: %w", err)
	}

	stats := domain.NewQueueStats(counts)
	if tenantID == "" {
		metrics.QueueJobs.WithLabelValues(string(domain.StatusPending)).Set(float64(stats.Pending))
		metrics.QueueJobs.WithLabelValues(string(domain.StatusProcessing)).Set(float64(stats.Processing))
		metrics.QueueJobs.WithLabelValues(string(domain.StatusCompleted)).Set(float64(stats.Completed))
		metrics.QueueJobs.WithLabelValues(string(domain.StatusCompletedWithErrors)).Set(float64(stats.CompletedWithErrors))
		metrics.QueueJobs.WithLabelValues(string(domain.StatusFailed)).Set(float64(stats.Failed))
	}
	return stats, nil
}

// CleanupOldJobs deletes terminal jobs completed more than daysOld days ago.
func (m *Manager) CleanupOldJobs(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 0 {
		return 0, fmt.Errorf("%w: days %d", domain.ErrInvalidJobField, daysOld)
	}

	cutoff := m.now().Add(-time.Duration(daysOld) * 24 * time.Hour)
	deleted, err := m.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old import jobs: %w", err)
	}
	if deleted > 0 {
		m.logger.Info("old import jobs deleted", "count", deleted, "older_than_days", daysOld)
	}
	return deleted, nil
}

// RetryFailedJobs puts failed jobs that still have retry budget back into the
// queue. It returns the number of requeued jobs.
func (m *Manager) RetryFailedJobs(ctx context.Context, tenantID string) (int, error) {
	failed, err := m.store.ListFailed(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list failed import jobs: %w", err)
	}

	pending := domain.StatusPending
	requeued := 0
	for _, job := range failed {
		if !job.HasRetryBudget() {
			continue
		}
		retryCount := job.RetryCount + 1
		if err := m.store.Update(ctx, job.ID, domain.JobUpdate{
			Status:           &pending,
			RetryCount:       &retryCount,
			ClearCompletedAt: true,
		}); err != nil {
			return requeued, fmt.Errorf("requeue import job %s: %w", job.ID, err)
		}
		requeued++
	}

	if requeued > 0 {
		m.logger.Info("failed import jobs requeued", "count", requeued, "tenant_id", tenantID)
		m.StartProcessing(ctx)
	}
	return requeued, nil
}

// StartProcessing starts the poll loop unless it is already running. The loop
// outlives ctx; use StopProcessing to end it.
func (m *Manager) StartProcessing(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)

	m.logger.Info("import queue processing started", "poll_interval", m.cfg.PollInterval)
}

// StopProcessing stops the poll loop and waits for the job in flight until ctx
// ends. The job itself is not interrupted.
func (m *Manager) StopProcessing(ctx context.Context) error {
	m.loopMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.loopMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		m.logger.Info("import queue processing stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight import job: %w", ctx.Err())
	}
}

func (m *Manager) IsProcessing() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.cancel != nil
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProcessNext(ctx)
		}
	}
}
