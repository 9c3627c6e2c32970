package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDispatcher(Options{Workers: 2})
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
			ran.Add(1)
			return nil
		}))
	}
	d.Close()

	assert.Equal(t, int32(5), ran.Load())
	assert.Zero(t, d.ErrorCount())
	assert.ErrorIs(t, d.Enqueue(context.Background(), "notify", "", func() error { return nil }), ErrQueueClosed)
}

func TestDispatcherDoesNotRetryByDefault(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDispatcher(Options{Workers: 1})
	var calls atomic.Int32
	timeout := &net.OpError{Op: "dial", Err: errors.New("refused")}
	require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		calls.Add(1)
		return timeout
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "notify", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", "", func() error { return nil }))
	assert.Equal(t, 1, d.Pending())
	assert.ErrorIs(t, d.Enqueue(context.Background(), "overflow", "", func() error { return nil }), ErrQueueFull)

	close(release)
	d.Close()
}

func TestRedacted(t *testing.T) {
	cause := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/getMe": EOF`)
	err := Redacted(cause)

	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/getMe": EOF`, err.Error())
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, Redacted(nil))
	assert.Empty(t, SanitizeError(nil))
}
