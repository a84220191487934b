package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy picks the wait before the next attempt of a failed operation
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Factor per attempt and spreads it by ±Jitter
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	// Jitter is a fraction of the delay; 0.1 spreads it ±10%
	Jitter float64

	random func() float64
}

// JobRetryBackoff is the schedule between attempts of a failed queue job:
// roughly 5s, 20s, 80s, then 5m for every later attempt.
func JobRetryBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial: 5 * time.Second,
		Max:     5 * time.Minute,
		Factor:  4,
		Jitter:  0.1,
	}
}

// NextDelay returns the delay before attempt+1. Negative attempts count as the first.
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	attempt = max(attempt, 0)

	delay := math.Min(float64(b.Initial)*math.Pow(b.Factor, float64(attempt)), float64(b.Max))
	if b.Jitter > 0 {
		random := b.random
		if random == nil {
			random = rand.Float64
		}
		delay += delay * b.Jitter * (2*random() - 1)
	}
	if delay < 0 {
		return b.Initial
	}
	return time.Duration(delay)
}

// FixedBackoff waits the same delay before every attempt
type FixedBackoff struct {
	Delay time.Duration
}

func (b *FixedBackoff) NextDelay(int) time.Duration {
	return b.Delay
}
