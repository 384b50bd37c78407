package fbsmslib

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, r RateLimit, clock *fakeClock) *RateLimiter {
	l, err := NewRateLimiter(r)
	require.NoError(t, err)
	l.now = clock.Now
	return l
}

func TestRateLimiterBurst(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, RateLimit{Capacity: 3, Window: time.Minute}, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(), "send %d", i)
	}
	err := l.Acquire()
	assert.True(t, errors.Is(err, ErrRateLimitExceeded), "got %v", err)
	assert.Contains(t, err.Error(), "3 per 1m0s")
}

func TestRateLimiterRefill(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, DefaultRateLimit(), clock)

	for i := 0; i < DefaultRateCapacity; i++ {
		require.NoError(t, l.Acquire())
	}
	assert.Error(t, l.Acquire())

	// One token every six minutes.
	clock.Advance(5 * time.Minute)
	assert.Error(t, l.Acquire())
	clock.Advance(2 * time.Minute)
	assert.NoError(t, l.Acquire())
	assert.Error(t, l.Acquire())

	// A full window refills the bucket but never beyond capacity.
	clock.Advance(3 * time.Hour)
	assert.InDelta(t, float64(DefaultRateCapacity), l.Tokens(), 1e-9)
	for i := 0; i < DefaultRateCapacity; i++ {
		require.NoError(t, l.Acquire())
	}
	assert.Error(t, l.Acquire())
}

func TestRateLimiterZeroCapacity(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, RateLimit{Capacity: 0, Window: time.Hour}, clock)

	assert.True(t, errors.Is(l.Acquire(), ErrRateLimitExceeded))
	clock.Advance(48 * time.Hour)
	assert.True(t, errors.Is(l.Acquire(), ErrRateLimitExceeded))
	assert.Equal(t, 0.0, l.Tokens())
}

func TestRateLimiterInvalid(t *testing.T) {
	_, err := NewRateLimiter(RateLimit{Capacity: -1, Window: time.Hour})
	assert.Error(t, err)
	_, err = NewRateLimiter(RateLimit{Capacity: 5})
	assert.Error(t, err)
	_, err = NewRateLimiter(RateLimit{Capacity: 5, Window: -time.Second})
	assert.Error(t, err)
}

func TestRateLimitersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	a := newTestLimiter(t, RateLimit{Capacity: 1, Window: time.Hour}, clock)
	b := newTestLimiter(t, RateLimit{Capacity: 1, Window: time.Hour}, clock)

	require.NoError(t, a.Acquire())
	assert.Error(t, a.Acquire())
	assert.NoError(t, b.Acquire())
}
