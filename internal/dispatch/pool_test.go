package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPoolPreservesPerKeyOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(4, 2)
	var mu sync.Mutex
	seen := map[string][]int{}

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a/1", "a/2", "b/1"} {
			require.NoError(t, p.Submit(context.Background(), key, func(context.Context) {
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			}))
		}
	}
	p.Close()

	for key, got := range seen {
		require.Len(t, got, 50, key)
		for i, v := range got {
			assert.Equal(t, i, v, key)
		}
	}
}

func TestPoolSameKeySameShard(t *testing.T) {
	p := NewPool(8, 1)
	defer p.Close()
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("fe/%d", i)
		assert.Equal(t, p.Shard(key), p.Shard(key))
		assert.Less(t, p.Shard(key), 8)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(1, 4)
	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), "k", func(context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(context.Background(), "k", func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after panic did not run")
	}
	p.Close()
}

func TestPoolSubmitHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), "k", func(context.Context) {
		close(started)
		<-block
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), "k", func(context.Context) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, "k", func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	p.Close()
	assert.ErrorIs(t, p.Submit(context.Background(), "k", func(context.Context) {}), ErrPoolClosed)
}
