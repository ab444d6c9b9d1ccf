package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/lepinkainen/librarian/internal/errors"
)

// Limiter wraps rate.Limiter with a name for logging/debugging.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewWithBurst creates a new rate limiter with custom burst size.
// The burst never drops below one.
func NewWithBurst(name string, requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1)),
		name:    name,
	}
}

// Check takes a token without blocking. When the request is rejected it
// returns a *errors.RateLimitError saying how long until a token is free.
func (l *Limiter) Check(now time.Time) error {
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return apperrors.NewRateLimitError(l.name + ": request exceeds burst")
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return nil
	}
	r.CancelAt(now)
	return apperrors.NewRateLimitErrorWithRetry(l.name+": too many requests", delay)
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Keyed hands out one Limiter per key, e.g. per caller.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	name     string
	rps      float64
	burst    int
}

// NewKeyed creates a set of limiters sharing the same rate and burst.
func NewKeyed(name string, requestsPerSecond float64, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*Limiter),
		name:     name,
		rps:      requestsPerSecond,
		burst:    burst,
	}
}

// Get returns the limiter for key, creating it on first use.
func (k *Keyed) Get(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = NewWithBurst(k.name+"/"+key, k.rps, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Sweep drops the limiters whose bucket has refilled by now. A dropped
// limiter is recreated full on the next Get, so no caller gains tokens.
// It returns the number of limiters removed.
func (k *Keyed) Sweep(now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, l := range k.limiters {
		if l.limiter.TokensAt(now) >= float64(l.limiter.Burst()) {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}
