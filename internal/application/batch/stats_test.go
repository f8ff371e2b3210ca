package batch_test

import (
	"testing"
	"time"

	"github.com/mohammadpnp/bulk-import/internal/application/batch"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/stretchr/testify/assert"
)

func TestGetPerformanceStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		average  time.Duration
		size     int
		wantSize int
	}{
		{name: "slow batches shrink", average: 6 * time.Second, size: 1000, wantSize: 700},
		{name: "fast batches grow", average: 200 * time.Millisecond, size: 1000, wantSize: 1300},
		{name: "steady batches keep size", average: 2 * time.Second, size: 500, wantSize: 500},
		{name: "growth is capped", average: 100 * time.Millisecond, size: 1800, wantSize: 2000},
		{name: "shrink has a floor", average: 10 * time.Second, size: 60, wantSize: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &domain.ProcessingResult{
				TotalRecords:     100,
				TotalProcessed:   80,
				TotalErrors:      20,
				TotalTime:        2 * time.Second,
				AverageBatchTime: tt.average,
				BatchSize:        tt.size,
				Batches: []domain.BatchResult{
					{Processed: 80, MemoryUsageMB: 30},
					{Errors: 20, Failed: true},
				},
			}

			stats := batch.GetPerformanceStats(result)
			assert.Equal(t, tt.wantSize, stats.SuggestedBatchSize)
			assert.InDelta(t, 40.0, stats.RecordsPerSecond, 0.001)
			assert.InDelta(t, 80.0, stats.EfficiencyPercent, 0.001)
			assert.InDelta(t, 30.0, stats.AverageMemoryMB, 0.001)
		})
	}
}

func TestGetPerformanceStatsNilResult(t *testing.T) {
	t.Parallel()

	assert.Equal(t, batch.PerformanceStats{}, batch.GetPerformanceStats(nil))
}
