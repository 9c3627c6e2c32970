package dispatch

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/taxibot/core/logger"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("dispatch: pool closed")

type task struct {
	ctx context.Context
	run func(context.Context)
}

// Pool runs tasks on a fixed set of shards. Tasks submitted with the same key
// land on the same shard and run in submission order.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	shards []chan task
	wg     sync.WaitGroup
}

// NewPool starts shards goroutines, each with a queue of queueSize tasks.
func NewPool(shards, queueSize int) *Pool {
	if shards <= 0 {
		shards = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &Pool{shards: make([]chan task, shards)}
	p.wg.Add(shards)
	for i := range p.shards {
		ch := make(chan task, queueSize)
		p.shards[i] = ch
		go p.worker(i, ch)
	}
	return p
}

// Shard returns the shard index for a key.
func (p *Pool) Shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// Submit queues run on the key's shard, blocking while the shard is full.
func (p *Pool) Submit(ctx context.Context, key string, run func(context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.shards[p.Shard(key)] <- task{ctx: ctx, run: run}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, drains the queues and waits for the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker(shard int, tasks <-chan task) {
	defer p.wg.Done()
	for t := range tasks {
		p.exec(shard, t)
	}
}

func (p *Pool) exec(shard int, t task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(t.ctx, logger.CompDispatch, "task.panic",
				slog.Int("shard", shard),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	t.run(t.ctx)
}
