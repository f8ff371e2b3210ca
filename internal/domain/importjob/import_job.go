package importjob

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

const DefaultMaxRetries = 3

// IsTerminal reports whether no further transition is expected for the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the job state machine.
// processing -> pending is the job-level retry edge. Rewriting the same status is
// allowed so callers can attach field updates without changing state.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusPending || to.IsTerminal()
	}
	return false
}

type ImportJob struct {
	ID       string
	TenantID string
	UserID   string
	FileName string
	FilePath string
	FileType string
	FileSize int64
	Status   Status
	Priority int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	HeartbeatAt *time.Time

	TotalRecords       int64
	ProcessedRecords   int64
	FailedRecords      int64
	ProgressPercentage float64

	RetryCount   int
	MaxRetries   int
	ErrorDetails string
}

func (j ImportJob) HasRetryBudget() bool {
	return j.RetryCount < j.MaxRetries
}

// NewJob carries the caller-supplied fields of an enqueue request.
type NewJob struct {
	TenantID   string
	UserID     string
	FileName   string
	FilePath   string
	FileType   string
	FileSize   int64
	Priority   int
	MaxRetries int
}

func (n NewJob) Validate() error {
	if strings.TrimSpace(n.TenantID) == "" ||
		strings.TrimSpace(n.UserID) == "" ||
		strings.TrimSpace(n.FileName) == "" ||
		strings.TrimSpace(n.FilePath) == "" ||
		strings.TrimSpace(n.FileType) == "" {
		return ErrMissingJobField
	}
	if n.FileSize < 0 || n.MaxRetries < 0 {
		return ErrInvalidJobField
	}
	return nil
}

// JobUpdate is a partial update. Nil fields are left untouched.
type JobUpdate struct {
	Status             *Status
	StartedAt          *time.Time
	CompletedAt        *time.Time
	HeartbeatAt        *time.Time
	TotalRecords       *int64
	ProcessedRecords   *int64
	FailedRecords      *int64
	ProgressPercentage *float64
	RetryCount         *int
	ErrorDetails       *string
	// ClearCompletedAt resets CompletedAt when a finished job is queued again.
	ClearCompletedAt bool
}

// Apply copies the non-nil fields of u onto job.
func (u JobUpdate) Apply(job *ImportJob) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.StartedAt != nil {
		job.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		job.CompletedAt = u.CompletedAt
	}
	if u.ClearCompletedAt {
		job.CompletedAt = nil
	}
	if u.HeartbeatAt != nil {
		job.HeartbeatAt = u.HeartbeatAt
	}
	if u.TotalRecords != nil {
		job.TotalRecords = *u.TotalRecords
	}
	if u.ProcessedRecords != nil {
		job.ProcessedRecords = *u.ProcessedRecords
	}
	if u.FailedRecords != nil {
		job.FailedRecords = *u.FailedRecords
	}
	if u.ProgressPercentage != nil {
		job.ProgressPercentage = *u.ProgressPercentage
	}
	if u.RetryCount != nil {
		job.RetryCount = *u.RetryCount
	}
	if u.ErrorDetails != nil {
		job.ErrorDetails = *u.ErrorDetails
	}
}

type Progress struct {
	ProcessedRecords int64
	FailedRecords    int64
	Percentage       float64
}

// QueueStats counts jobs per status.
type QueueStats struct {
	Pending             int64 `json:"pending"`
	Processing          int64 `json:"processing"`
	Completed           int64 `json:"completed"`
	CompletedWithErrors int64 `json:"completed_with_errors"`
	Failed              int64 `json:"failed"`
	Total               int64 `json:"total"`
}

func NewQueueStats(counts map[Status]int64) QueueStats {
	stats := QueueStats{
		Pending:             counts[StatusPending],
		Processing:          counts[StatusProcessing],
		Completed:           counts[StatusCompleted],
		CompletedWithErrors: counts[StatusCompletedWithErrors],
		Failed:              counts[StatusFailed],
	}
	stats.Total = stats.Pending + stats.Processing + stats.Completed + stats.CompletedWithErrors + stats.Failed
	return stats
}
