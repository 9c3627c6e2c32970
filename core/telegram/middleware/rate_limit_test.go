package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitersPerUser(t *testing.T) {
	l := newLimiters(RateLimitOptions{Interval: time.Second})
	t0 := time.Unix(1_700_000_000, 0)

	assert.True(t, l.allow(1, t0))
	assert.False(t, l.allow(1, t0.Add(100*time.Millisecond)))
	assert.True(t, l.allow(2, t0.Add(100*time.Millisecond)))
	assert.True(t, l.allow(1, t0.Add(1100*time.Millisecond)))
}

func TestLimitersBurst(t *testing.T) {
	l := newLimiters(RateLimitOptions{Interval: time.Second, Burst: 3})
	t0 := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow(1, t0), "burst %d", i)
	}
	assert.False(t, l.allow(1, t0))
}

func TestLimitersEvictIdleUsers(t *testing.T) {
	l := newLimiters(RateLimitOptions{Interval: time.Second, IdleTTL: time.Minute})
	t0 := time.Unix(1_700_000_000, 0)

	l.allow(1, t0)
	l.allow(2, t0)
	assert.Equal(t, 2, l.size())

	l.allow(3, t0.Add(2*time.Minute))
	assert.Equal(t, 1, l.size())
}
