package fbsmslib

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRateCapacity = 10
	DefaultRateWindow   = time.Hour
)

// RateLimit allows Capacity sends per Window.
type RateLimit struct {
	Capacity int
	Window   time.Duration
}

func DefaultRateLimit() RateLimit {
	return RateLimit{Capacity: DefaultRateCapacity, Window: DefaultRateWindow}
}

func (r RateLimit) String() string {
	return fmt.Sprintf("%d per %v", r.Capacity, r.Window)
}

// RateLimiter is a token bucket that starts full and refills at
// Capacity/Window tokens per second. Each limiter belongs to one Client.
type RateLimiter struct {
	limit   RateLimit
	limiter *rate.Limiter
	now     func() time.Time
}

// NewRateLimiter builds a limiter for r. A capacity of 0 is valid and
// rejects every send.
func NewRateLimiter(r RateLimit) (*RateLimiter, error) {
	if r.Capacity < 0 {
		return nil, errors.New("rate limit capacity must not be negative")
	}
	l := &RateLimiter{limit: r, now: time.Now}
	if r.Capacity == 0 {
		return l, nil
	}
	if r.Window <= 0 {
		return nil, errors.New("rate limit window must be positive")
	}
	l.limiter = rate.NewLimiter(rate.Limit(float64(r.Capacity)/r.Window.Seconds()), r.Capacity)
	return l, nil
}

// Acquire takes one token or fails with ErrRateLimitExceeded. It never
// waits.
func (l *RateLimiter) Acquire() error {
	if l.limiter == nil || !l.limiter.AllowN(l.now(), 1) {
		return newError(ErrRateLimitExceeded, l.limit.String(), nil)
	}
	return nil
}

// Tokens returns the number of sends currently available.
func (l *RateLimiter) Tokens() float64 {
	if l.limiter == nil {
		return 0
	}
	return l.limiter.TokensAt(l.now())
}
