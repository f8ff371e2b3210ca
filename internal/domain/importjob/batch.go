package importjob

import (
	"strings"
	"time"
)

// Record is one data row of an uploaded file. Index is the zero-based data row.
type Record struct {
	Index  int
	Fields map[string]string
}

// Blank reports whether every field of the record is empty.
func (r Record) Blank() bool {
	for _, value := range r.Fields {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

const BlankRecordMessage = "record has no values"

type RecordFailure struct {
	Record  Record
	Message string
	Index   int
}

type BatchResult struct {
	BatchIndex     int
	Processed      int
	Errors         int
	Failures       []RecordFailure
	ProcessingTime time.Duration
	MemoryUsageMB  float64
	// Failed marks a batch whose processor call was rejected as a whole.
	Failed       bool
	ErrorMessage string
	Err          error
}

type ProcessingResult struct {
	TotalRecords     int
	TotalProcessed   int
	TotalErrors      int
	Batches          []BatchResult
	TotalTime        time.Duration
	AverageBatchTime time.Duration
	PeakMemoryMB     float64
	BatchSize        int
	Tier             string
	Success          bool
}
