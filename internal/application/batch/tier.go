package batch

import "time"

// Tier is a preset batch configuration chosen by record count.
type Tier struct {
	Name              string
	BatchSize         int
	MaxConcurrency    int
	Delay             time.Duration
	MemoryThresholdMB float64
}

// Larger files use bigger batches with less concurrency to bound peak memory.
var (
	TierSmall  = Tier{Name: "small", BatchSize: 100, MaxConcurrency: 2, Delay: 100 * time.Millisecond, MemoryThresholdMB: 50}
	TierMedium = Tier{Name: "medium", BatchSize: 250, MaxConcurrency: 3, Delay: 200 * time.Millisecond, MemoryThresholdMB: 100}
	TierLarge  = Tier{Name: "large", BatchSize: 500, MaxConcurrency: 4, Delay: 300 * time.Millisecond, MemoryThresholdMB: 200}
	TierXLarge = Tier{Name: "xlarge", BatchSize: 1000, MaxConcurrency: 2, Delay: 500 * time.Millisecond, MemoryThresholdMB: 300}
)

func SelectTier(totalRecords int) Tier {
	switch {
	case totalRecords < 1000:
		return TierSmall
	case totalRecords < 10000:
		return TierMedium
	case totalRecords < 50000:
		return TierLarge
	default:
		return TierXLarge
	}
}

func (t Tier) normalized() Tier {
	if t.BatchSize <= 0 {
		t.BatchSize = TierSmall.BatchSize
	}
	if t.MaxConcurrency <= 0 {
		t.MaxConcurrency = 1
	}
	if t.Delay < 0 {
		t.Delay = 0
	}
	return t
}
