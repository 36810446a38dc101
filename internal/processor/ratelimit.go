package processor

import (
	"sync"

	"golang.org/x/time/rate"
)

// admissionLimiter is a per-provider token-bucket gate on enqueueRequest,
// grounded on FluxForge's control_plane/scheduler/limiter.go
// TokenBucketLimiter, but built on golang.org/x/time/rate instead of a
// hand-rolled bucket. It is independent of the Worker Pool's concurrency
// limits: it protects providers from admission bursts, not workers from
// overload.
type admissionLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newAdmissionLimiter(rps float64, burst int) *admissionLimiter {
	return &admissionLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (a *admissionLimiter) allow(provider string) bool {
	if a.rps <= 0 {
		return true
	}
	a.mu.Lock()
	lim, ok := a.limiters[provider]
	if !ok {
		lim = rate.NewLimiter(a.rps, a.burst)
		a.limiters[provider] = lim
	}
	a.mu.Unlock()
	return lim.Allow()
}
