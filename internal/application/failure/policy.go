package failure

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryStrategy is the backoff configuration of one error type.
type RetryStrategy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultStrategies returns the retry table. Validation, file format and
// permission failures are never retried.
func DefaultStrategies() map[ErrorType]RetryStrategy {
	return map[ErrorType]RetryStrategy{
		TypeNetwork:    {MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: true},
		TypeDatabase:   {MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 2, Jitter: true},
		TypeTimeout:    {MaxRetries: 3, BaseDelay: 5 * time.Second, MaxDelay: 20 * time.Second, BackoffMultiplier: 1.5},
		TypeQuota:      {MaxRetries: 2, BaseDelay: time.Minute, MaxDelay: 5 * time.Minute, BackoffMultiplier: 2},
		TypeValidation: {},
		TypeFileFormat: {},
		TypePermission: {},
		TypeUnknown:    {MaxRetries: 1, BaseDelay: 5 * time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 1, Jitter: true},
	}
}

type Policy struct {
	strategies map[ErrorType]RetryStrategy
	random     func() float64
}

// NewPolicy builds a policy from strategies. Types missing from the map fall
// back to the default table.
func NewPolicy(strategies map[ErrorType]RetryStrategy) *Policy {
	merged := DefaultStrategies()
	for t, s := range strategies {
		merged[t] = s
	}
	return &Policy{strategies: merged, random: rand.Float64}
}

func (p *Policy) Strategy(t ErrorType) RetryStrategy {
	if s, ok := p.strategies[t]; ok {
		return s
	}
	return p.strategies[TypeUnknown]
}

func (p *Policy) IsRetryable(t ErrorType) bool {
	return p.Strategy(t).MaxRetries > 0
}

func (p *Policy) CanRetry(t ErrorType, retryCount int) bool {
	s := p.Strategy(t)
	return s.MaxRetries > 0 && retryCount < s.MaxRetries
}

// BaseDelay is min(base * multiplier^retryCount, max) without jitter.
func (p *Policy) BaseDelay(t ErrorType, retryCount int) time.Duration {
	s := p.Strategy(t)
	if s.MaxRetries == 0 || s.BaseDelay <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}

	multiplier := s.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(s.BaseDelay) * math.Pow(multiplier, float64(retryCount))
	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		delay = float64(s.MaxDelay)
	}
	return time.Duration(delay)
}

// Delay is BaseDelay scaled by a uniform factor in [0.5, 1.0) when the
// strategy has jitter enabled.
func (p *Policy) Delay(t ErrorType, retryCount int) time.Duration {
	delay := p.BaseDelay(t, retryCount)
	if delay == 0 || !p.Strategy(t).Jitter {
		return delay
	}
	return time.Duration(float64(delay) * (0.5 + p.random()*0.5))
}
