package failure

import (
	"context"
	"log/slog"
	"time"
)

// Archive keeps terminal errors for operators after they leave the registry.
type Archive interface {
	Save(ctx context.Context, pe ProcessedError) error
}

type Executor struct {
	handler *Handler
	archive Archive
	sleep   func(ctx context.Context, d time.Duration) bool
	logger  *slog.Logger
}

type ExecutorOption func(*Executor)

func WithArchive(archive Archive) ExecutorOption {
	return func(e *Executor) {
		e.archive = archive
	}
}

// WithSleeper replaces the backoff wait. The function returns false when ctx
// ended before d elapsed.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) bool) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExecutor(handler *Handler, opts ...ExecutorOption) *Executor {
	e := &Executor{
		handler: handler,
		sleep:   SleepWithContext,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Handler() *Handler {
	return e.handler
}

// Execute runs op until it succeeds or its classified error can no longer be
// retried. The terminal error is returned as *ProcessedError.
func Execute[T any](ctx context.Context, e *Executor, ectx ErrorContext, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	failures := 0

	for {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}

		pe := e.handler.HandleError(err, ectx)
		if failures == 0 && pe.RetryCount > 0 {
			// Left over from an earlier run of the same unit of work.
			if reset, resetErr := e.handler.resetRetry(pe.ID); resetErr == nil {
				pe = reset
			}
		}
		failures++

		if !pe.CanRetry() {
			e.archiveTerminal(ctx, pe)
			return zero, &pe
		}

		wait := pe.NextRetryAt.Sub(e.handler.now())
		e.logger.Info("retrying import operation",
			"error_id", pe.ID,
			"type", pe.Type,
			"operation", ectx.Operation,
			"job_id", ectx.JobID,
			"retry", pe.RetryCount+1,
			"max_retries", pe.MaxRetries,
			"wait", wait,
		)
		if !e.sleep(ctx, wait) {
			return zero, ctx.Err()
		}

		if _, err := e.handler.IncrementRetry(pe.ID); err != nil {
			// Entry was cleaned up while waiting; the next failure registers it again.
			failures = 0
		}
	}
}

func (e *Executor) archiveTerminal(ctx context.Context, pe ProcessedError) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Save(ctx, pe); err != nil {
		e.logger.Error("archive terminal error failed", "error_id", pe.ID, "job_id", pe.Context.JobID, "error", err)
	}
}

// SleepWithContext waits for d and reports false if ctx ended first.
func SleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
