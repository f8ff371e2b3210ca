package failure

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ErrorType string

const (
	TypeNetwork    ErrorType = "network"
	TypeDatabase   ErrorType = "database"
	TypeTimeout    ErrorType = "timeout"
	TypeQuota      ErrorType = "quota"
	TypeValidation ErrorType = "validation"
	TypeFileFormat ErrorType = "file_format"
	TypePermission ErrorType = "permission"
	TypeUnknown    ErrorType = "unknown"
)

// AllTypes lists every error type in classification order, UNKNOWN last.
var AllTypes = []ErrorType{
	TypeNetwork,
	TypeDatabase,
	TypeFileFormat,
	TypeValidation,
	TypePermission,
	TypeQuota,
	TypeTimeout,
	TypeUnknown,
}

func (t ErrorType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityOf maps an error type to its fixed severity.
func SeverityOf(t ErrorType) Severity {
	switch t {
	case TypeDatabase, TypePermission:
		return SeverityCritical
	case TypeNetwork, TypeTimeout, TypeQuota:
		return SeverityHigh
	case TypeFileFormat, TypeValidation:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ErrorContext describes where a failure happened.
type ErrorContext struct {
	JobID       string    `json:"job_id,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Operation   string    `json:"operation,omitempty"`
	RecordIndex *int      `json:"record_index,omitempty"`
	BatchIndex  *int      `json:"batch_index,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c ErrorContext) WithBatch(index int) ErrorContext {
	c.BatchIndex = &index
	return c
}

func (c ErrorContext) WithRecord(index int) ErrorContext {
	c.RecordIndex = &index
	return c
}

// identity is the key under which repeated failures of the same unit of work
// are merged. Contexts without a job or operation have no identity.
func (c ErrorContext) identity() string {
	if c.JobID == "" && c.Operation == "" {
		return ""
	}
	return strings.Join([]string{
		c.TenantID,
		c.JobID,
		c.Operation,
		optionalIndex(c.BatchIndex),
		optionalIndex(c.RecordIndex),
	}, "|")
}

func optionalIndex(i *int) string {
	if i == nil {
		return "-"
	}
	return strconv.Itoa(*i)
}

// ProcessedError is a classified, retry-tracked failure.
type ProcessedError struct {
	ID            string       `json:"id"`
	Type          ErrorType    `json:"type"`
	Severity      Severity     `json:"severity"`
	Message       string       `json:"message"`
	UserMessage   string       `json:"user_message"`
	OriginalError error        `json:"-"`
	Context       ErrorContext `json:"context"`
	Retryable     bool         `json:"retryable"`
	RetryCount    int          `json:"retry_count"`
	MaxRetries    int          `json:"max_retries"`
	NextRetryAt   time.Time    `json:"next_retry_at"`

	identity string
}

func (e *ProcessedError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *ProcessedError) Unwrap() error {
	return e.OriginalError
}

// ErrorType lets an already processed error keep its type when it is
// classified again further up the stack.
func (e *ProcessedError) ErrorType() ErrorType {
	return e.Type
}

// CanRetry reports whether the error has retry budget left.
func (e *ProcessedError) CanRetry() bool {
	return e.Retryable && e.RetryCount < e.MaxRetries
}

type ErrorStats struct {
	TotalErrors        int               `json:"total_errors"`
	ErrorsByType       map[ErrorType]int `json:"errors_by_type"`
	RetryableErrors    int               `json:"retryable_errors"`
	NonRetryableErrors int               `json:"non_retryable_errors"`
}

type GlobalStats struct {
	ErrorStats
	ErrorsBySeverity map[Severity]int `json:"errors_by_severity"`
	AffectedJobs     int              `json:"affected_jobs"`
}
