package failure

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammadpnp/bulk-import/internal/metrics"
)

// DefaultMaxErrorAge is the retention used by CleanupOldErrors when no age is given.
const DefaultMaxErrorAge = 24 * time.Hour

var ErrErrorNotFound = errors.New("processed error not found")

// Handler is the in-memory registry of processed errors. It is safe for
// concurrent use.
type Handler struct {
	mu         sync.RWMutex
	errors     map[string]*ProcessedError
	byJob      map[string]map[string]struct{}
	byIdentity map[string]string

	policy     *Policy
	classifier ClassificationPolicy
	now        func() time.Time
	logger     *slog.Logger
}

type HandlerOption func(*Handler)

func WithPolicy(policy *Policy) HandlerOption {
	return func(h *Handler) {
		if policy != nil {
			h.policy = policy
		}
	}
}

func WithClassifier(classifier ClassificationPolicy) HandlerOption {
	return func(h *Handler) {
		if len(classifier) > 0 {
			h.classifier = classifier
		}
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		errors:     make(map[string]*ProcessedError),
		byJob:      make(map[string]map[string]struct{}),
		byIdentity: make(map[string]string),
		policy:     NewPolicy(nil),
		classifier: DefaultClassificationPolicy,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Policy() *Policy {
	return h.policy
}

// HandleError classifies err and registers it. A failure with the same context
// identity as a registered one updates that entry and keeps its retry count.
func (h *Handler) HandleError(err error, ectx ErrorContext) ProcessedError {
	now := h.now()
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = now
	}

	class := h.classifier.Classify(err)
	strategy := h.policy.Strategy(class.Type)
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}

	h.mu.Lock()
	identity := ectx.identity()
	pe := h.lookupLocked(identity)
	if pe == nil {
		pe = &ProcessedError{
			ID:       uuid.NewString(),
			identity: identity,
		}
		h.errors[pe.ID] = pe
		if identity != "" {
			h.byIdentity[identity] = pe.ID
		}
		if ectx.JobID != "" {
			if h.byJob[ectx.JobID] == nil {
				h.byJob[ectx.JobID] = make(map[string]struct{})
			}
			h.byJob[ectx.JobID][pe.ID] = struct{}{}
		}
	}

	pe.Type = class.Type
	pe.Severity = class.Severity
	pe.Message = message
	pe.UserMessage = UserMessage(class.Type, ectx)
	pe.OriginalError = err
	pe.Context = ectx
	pe.Retryable = strategy.MaxRetries > 0
	pe.MaxRetries = strategy.MaxRetries
	pe.NextRetryAt = now.Add(h.policy.Delay(class.Type, pe.RetryCount))
	snapshot := *pe
	h.mu.Unlock()

	metrics.ErrorsClassified.WithLabelValues(string(class.Type), string(class.Severity)).Inc()
	h.logger.Warn("import error classified",
		"error_id", snapshot.ID,
		"type", snapshot.Type,
		"severity", snapshot.Severity,
		"job_id", ectx.JobID,
		"operation", ectx.Operation,
		"retry_count", snapshot.RetryCount,
		"error", message,
	)

	return snapshot
}

func (h *Handler) lookupLocked(identity string) *ProcessedError {
	if identity == "" {
		return nil
	}
	id, ok := h.byIdentity[identity]
	if !ok {
		return nil
	}
	return h.errors[id]
}

// IncrementRetry bumps the retry count and schedules the next attempt from it.
func (h *Handler) IncrementRetry(id string) (ProcessedError, error) {
	h.mu.Lock()
	pe, ok := h.errors[id]
	if !ok {
		h.mu.Unlock()
		return ProcessedError{}, ErrErrorNotFound
	}
	pe.RetryCount++
	pe.NextRetryAt = h.now().Add(h.policy.Delay(pe.Type, pe.RetryCount))
	snapshot := *pe
	h.mu.Unlock()

	metrics.Retries.WithLabelValues(string(snapshot.Type)).Inc()
	return snapshot, nil
}

func (h *Handler) resetRetry(id string) (ProcessedError, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pe, ok := h.errors[id]
	if !ok {
		return ProcessedError{}, ErrErrorNotFound
	}
	pe.RetryCount = 0
	pe.NextRetryAt = h.now().Add(h.policy.Delay(pe.Type, 0))
	return *pe, nil
}

// CanRetry is false for unknown ids.
func (h *Handler) CanRetry(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pe, ok := h.errors[id]
	if !ok {
		return false
	}
	return pe.CanRetry()
}

func (h *Handler) GetErrorByID(id string) (ProcessedError, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pe, ok := h.errors[id]
	if !ok {
		return ProcessedError{}, false
	}
	return *pe, true
}

// GetErrorsByJob returns the job's errors, oldest first.
func (h *Handler) GetErrorsByJob(jobID string) []ProcessedError {
	h.mu.RLock()
	out := make([]ProcessedError, 0, len(h.byJob[jobID]))
	for id := range h.byJob[jobID] {
		if pe, ok := h.errors[id]; ok {
			out = append(out, *pe)
		}
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Context.Timestamp.Before(out[j].Context.Timestamp)
	})
	return out
}

func (h *Handler) GetErrorStats(jobID string) ErrorStats {
	stats := ErrorStats{ErrorsByType: make(map[ErrorType]int)}
	for _, pe := range h.GetErrorsByJob(jobID) {
		addToStats(&stats, pe)
	}
	return stats
}

func (h *Handler) GetGlobalStats() GlobalStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := GlobalStats{
		ErrorStats:       ErrorStats{ErrorsByType: make(map[ErrorType]int)},
		ErrorsBySeverity: make(map[Severity]int),
		AffectedJobs:     len(h.byJob),
	}
	for _, pe := range h.errors {
		addToStats(&stats.ErrorStats, *pe)
		stats.ErrorsBySeverity[pe.Severity]++
	}
	return stats
}

func addToStats(stats *ErrorStats, pe ProcessedError) {
	stats.TotalErrors++
	stats.ErrorsByType[pe.Type]++
	if pe.Retryable {
		stats.RetryableErrors++
	} else {
		stats.NonRetryableErrors++
	}
}

// CleanupOldErrors drops errors whose timestamp is older than maxAge and
// returns how many were removed. maxAge <= 0 means DefaultMaxErrorAge.
func (h *Handler) CleanupOldErrors(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxErrorAge
	}
	cutoff := h.now().Add(-maxAge)

	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, pe := range h.errors {
		if pe.Context.Timestamp.Before(cutoff) {
			h.removeLocked(id)
			removed++
		}
	}
	return removed
}

func (h *Handler) ClearErrorsForJob(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id := range h.byJob[jobID] {
		h.removeLocked(id)
		removed++
	}
	delete(h.byJob, jobID)
	return removed
}

func (h *Handler) removeLocked(id string) {
	pe, ok := h.errors[id]
	if !ok {
		return
	}
	delete(h.errors, id)
	if pe.identity != "" {
		delete(h.byIdentity, pe.identity)
	}
	if jobErrors, ok := h.byJob[pe.Context.JobID]; ok {
		delete(jobErrors, id)
		if len(jobErrors) == 0 {
			delete(h.byJob, pe.Context.JobID)
		}
	}
}
