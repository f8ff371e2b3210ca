package batch

import (
	"time"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

const (
	minSuggestedBatchSize = 50
	maxSuggestedBatchSize = 2000
)

type PerformanceStats struct {
	RecordsPerSecond   float64 `json:"records_per_second"`
	AverageMemoryMB    float64 `json:"average_memory_mb"`
	EfficiencyPercent  float64 `json:"efficiency_percent"`
	SuggestedBatchSize int     `json:"suggested_batch_size"`
}

// GetPerformanceStats derives throughput figures and a batch size for the next
// run: 30% smaller when batches average over 5s, 30% larger under 1s. A nil
// result yields zero stats.
func GetPerformanceStats(result *domain.ProcessingResult) PerformanceStats {
	if result == nil {
		return PerformanceStats{}
	}
	stats := PerformanceStats{SuggestedBatchSize: clampBatchSize(result.BatchSize)}

	if seconds := result.TotalTime.Seconds(); seconds > 0 {
		stats.RecordsPerSecond = float64(result.TotalProcessed) / seconds
	}
	if result.TotalRecords > 0 {
		stats.EfficiencyPercent = float64(result.TotalProcessed) / float64(result.TotalRecords) * 100
	}

	var memory float64
	measured := 0
	for _, b := range result.Batches {
		if b.Failed {
			continue
		}
		memory += b.MemoryUsageMB
		measured++
	}
	if measured > 0 {
		stats.AverageMemoryMB = memory / float64(measured)
	}

	if len(result.Batches) == 0 {
		return stats
	}
	switch {
	case result.AverageBatchTime > 5*time.Second:
		stats.SuggestedBatchSize = clampBatchSize(int(float64(result.BatchSize) * 0.7))
	case result.AverageBatchTime < time.Second:
		stats.SuggestedBatchSize = clampBatchSize(int(float64(result.BatchSize) * 1.3))
	}
	return stats
}

func clampBatchSize(size int) int {
	return min(max(size, minSuggestedBatchSize), maxSuggestedBatchSize)
}
