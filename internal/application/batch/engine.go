package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const OperationProcessBatch = "process_batch"

var ErrNilProcessor = errors.New("batch processor is nil")

// Processor persists one batch. It returns an error when the batch failed as a
// whole and a BatchResult with per-record failures on partial success.
type Processor func(ctx context.Context, records []domain.Record, batchIndex int) (domain.BatchResult, error)

type ProgressReporter interface {
	UpdateProgress(ctx context.Context, jobID string, progress domain.Progress) error
}

type JobRef struct {
	ID       string
	TenantID string
}

type Engine struct {
	executor *failure.Executor
	progress ProgressReporter
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) bool
	memoryMB func() float64
	gc       func()
}

type Option func(*Engine)

func WithProgressReporter(progress ProgressReporter) Option {
	return func(e *Engine) {
		e.progress = progress
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSleeper replaces the wait between waves.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithMemorySampler replaces the heap sampler and the collection hint.
func WithMemorySampler(memoryMB func() float64, gc func()) Option {
	return func(e *Engine) {
		if memoryMB != nil {
			e.memoryMB = memoryMB
		}
		if gc != nil {
			e.gc = gc
		}
	}
}

func NewEngine(executor *failure.Executor, opts ...Option) *Engine {
	e := &Engine{
		executor: executor,
		logger:   slog.Default(),
		sleep:    failure.SleepWithContext,
		memoryMB: heapAllocMB,
		gc:       runtime.GC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type runConfig struct {
	tier *Tier
}

type RunOption func(*runConfig)

// WithTier pins the tier instead of selecting it by record count.
func WithTier(tier Tier) RunOption {
	return func(c *runConfig) {
		c.tier = &tier
	}
}

// ProcessInBatches splits records into contiguous batches and runs them in
// waves of at most MaxConcurrency concurrent batches. A batch whose processor
// call fails after retries counts all of its records as failed.
func (e *Engine) ProcessInBatches(ctx context.Context, job JobRef, records []domain.Record, processor Processor, opts ...RunOption) (*domain.ProcessingResult, error) {
	if processor == nil {
		return nil, ErrNilProcessor
	}

	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tier := SelectTier(len(records))
	if cfg.tier != nil {
		tier = *cfg.tier
	}
	tier = tier.normalized()

	started := time.Now()
	chunks := split(records, tier.BatchSize)
	result := &domain.ProcessingResult{
		TotalRecords: len(records),
		Batches:      make([]domain.BatchResult, 0, len(chunks)),
		BatchSize:    tier.BatchSize,
		Tier:         tier.Name,
	}

	e.logger.Info("processing import in batches",
		"job_id", job.ID,
		"records", len(records),
		"batches", len(chunks),
		"tier", tier.Name,
		"batch_size", tier.BatchSize,
		"concurrency", tier.MaxConcurrency,
	)

	for start := 0; start < len(chunks); start += tier.MaxConcurrency {
		end := min(start+tier.MaxConcurrency, len(chunks))

		for _, batchResult := range e.runWave(ctx, job, chunks[start:end], start, processor) {
			result.Batches = append(result.Batches, batchResult)
			result.TotalProcessed += batchResult.Processed
			result.TotalErrors += batchResult.Errors
			if !batchResult.Failed && batchResult.MemoryUsageMB > result.PeakMemoryMB {
				result.PeakMemoryMB = batchResult.MemoryUsageMB
			}
		}

		e.reportProgress(ctx, job, result)

		if end == len(chunks) {
			break
		}
		if current := e.memoryMB(); current > tier.MemoryThresholdMB {
			e.logger.Debug("memory above threshold, hinting gc", "job_id", job.ID, "memory_mb", current, "threshold_mb", tier.MemoryThresholdMB)
			e.gc()
		}
		if !e.sleep(ctx, tier.Delay) {
			finish(result, started)
			return result, ctx.Err()
		}
	}

	finish(result, started)
	e.logger.Info("batch processing finished",
		"job_id", job.ID,
		"processed", result.TotalProcessed,
		"errors", result.TotalErrors,
		"duration", result.TotalTime,
	)
	return result, nil
}

func (e *Engine) runWave(ctx context.Context, job JobRef, chunks [][]domain.Record, firstIndex int, processor Processor) []domain.BatchResult {
	results := make([]domain.BatchResult, len(chunks))

	// Plain Group: a failed batch is recorded in its slot and must not cancel
	// the rest of the wave.
	var g errgroup.Group
	g.SetLimit(len(chunks))
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = e.runBatch(ctx, job, chunk, firstIndex+i, processor)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) runBatch(ctx context.Context, job JobRef, chunk []domain.Record, batchIndex int, processor Processor) domain.BatchResult {
	ectx := failure.ErrorContext{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		Operation: OperationProcessBatch,
	}.WithBatch(batchIndex)

	started := time.Now()
	res, err := failure.Execute(ctx, e.executor, ectx, func(ctx context.Context) (res domain.BatchResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("batch processor panic: %v", r)
			}
		}()
		return processor(ctx, chunk, batchIndex)
	})
	elapsed := time.Since(started)
	metrics.BatchDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.BatchesProcessed.WithLabelValues("failed").Inc()
		metrics.RecordsProcessed.WithLabelValues("failed").Add(float64(len(chunk)))
		e.logger.Error("batch failed", "job_id", job.ID, "batch_index", batchIndex, "records", len(chunk), "error", err)
		return domain.BatchResult{
			BatchIndex:     batchIndex,
			Errors:         len(chunk),
			ProcessingTime: elapsed,
			Failed:         true,
			ErrorMessage:   err.Error(),
			Err:            err,
		}
	}

	res.BatchIndex = batchIndex
	clampCounts(&res, len(chunk))
	if res.ProcessingTime <= 0 {
		res.ProcessingTime = elapsed
	}
	if res.MemoryUsageMB <= 0 {
		res.MemoryUsageMB = e.memoryMB()
	}

	metrics.BatchesProcessed.WithLabelValues("ok").Inc()
	metrics.RecordsProcessed.WithLabelValues("processed").Add(float64(res.Processed))
	metrics.RecordsProcessed.WithLabelValues("failed").Add(float64(res.Errors))
	return res
}

// clampCounts keeps processed + errors within the batch size.
func clampCounts(res *domain.BatchResult, size int) {
	res.Processed = min(max(res.Processed, 0), size)
	res.Errors = min(max(res.Errors, 0), size-res.Processed)
}

func (e *Engine) reportProgress(ctx context.Context, job JobRef, result *domain.ProcessingResult) {
	if e.progress == nil || job.ID == "" {
		return
	}

	progress := domain.Progress{
		ProcessedRecords: int64(result.TotalProcessed),
		FailedRecords:    int64(result.TotalErrors),
	}
	if result.TotalRecords > 0 {
		progress.Percentage = float64(result.TotalProcessed+result.TotalErrors) / float64(result.TotalRecords) * 100
	}

	if err := e.progress.UpdateProgress(ctx, job.ID, progress); err != nil {
		e.logger.Warn("persist batch progress failed", "job_id", job.ID, "error", err)
	}
}

func finish(result *domain.ProcessingResult, started time.Time) {
	result.TotalTime = time.Since(started)
	if len(result.Batches) > 0 {
		var sum time.Duration
		for _, b := range result.Batches {
			sum += b.ProcessingTime
		}
		result.AverageBatchTime = sum / time.Duration(len(result.Batches))
	}
	result.Success = result.TotalErrors == 0
}

func split(records []domain.Record, size int) [][]domain.Record {
	chunks := make([][]domain.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		chunks = append(chunks, records[start:min(start+size, len(records))])
	}
	return chunks
}

func heapAllocMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc) / 1024 / 1024
}
