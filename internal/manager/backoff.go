package manager

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy computes exponential retry delays with jitter, adapted
// from the teacher's task.RetryPolicy so the retry re-admitter's wait
// grows with attempt count instead of using one flat RetryDelay for
// every attempt.
type BackoffPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

// DefaultBackoffPolicy mirrors spec.md §6's RetryDelay as the initial
// step of an exponential series capped at a few minutes.
func DefaultBackoffPolicy(initial time.Duration) BackoffPolicy {
	return BackoffPolicy{
		InitialBackoff: initial,
		MaxBackoff:     5 * time.Minute,
		BackoffFactor:  2.0,
		JitterFactor:   0.1,
	}
}

// Delay returns the backoff duration for the given attempt count (0 for
// the first retry).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.InitialBackoff
	}
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	if p.JitterFactor > 0 {
		jitter := backoff * p.JitterFactor * (rand.Float64()*2 - 1)
		backoff += jitter
	}
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}
