// Package sender runs outbound Telegram calls off the update path.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job was dropped because the queue is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes a Dispatcher. Zero values pick defaults; MaxRetries 0 means
// every job runs exactly once.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher is a bounded queue drained by a fixed set of workers.
type Dispatcher struct {
	opts    Options
	backoff netutil.Backoff

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	errs atomic.Uint64
}

// NewDispatcher starts opts.Workers workers; Close stops them.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:    opts,
		backoff: netutil.Backoff{Step: opts.RetryBackoff, Max: opts.MaxDuration},
		jobs:    make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.execute(j)
			}
		}()
	}
	return d
}

// Enqueue queues run without blocking. It fails with ErrQueueFull when the
// queue is saturated and ErrQueueClosed after Close.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		logger.Warn(ctx, logger.CompSender, "send.dropped",
			slog.String("action", action),
			slog.Int("count", len(d.jobs)),
		)
		return ErrQueueFull
	}
}

// Pending returns the number of jobs waiting for a worker.
func (d *Dispatcher) Pending() int { return len(d.jobs) }

// ErrorCount returns how many jobs failed for good.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Close rejects new jobs and waits until queued ones have run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, j)
	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.String("endpoint", j.endpoint),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		d.errs.Add(1)
		kind := netutil.Classify(err)
		logger.Error(j.ctx, logger.CompSender, "send.fail", append(attrs,
			slog.String("err", SanitizeError(err)),
			slog.String("cause", string(kind)),
			slog.Bool("retryable", kind.Transient()),
			slog.Int("http_code", netutil.StatusCode(err)),
		)...)
		return
	}
	if attempts > 1 {
		logger.Info(j.ctx, logger.CompSender, "send.recovered", attrs...)
		return
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(j.ctx, logger.CompSender, "send.ok", attrs...)
	}
}

// attempt runs j until it succeeds, fails permanently, runs out of retries or
// ctx expires. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	for n := 1; ; n++ {
		err := j.run()
		if err == nil {
			return n, nil
		}
		if n > d.opts.MaxRetries || !netutil.ShouldRetry(err) {
			return n, err
		}
		logger.Debug(j.ctx, logger.CompSender, "send.retry",
			slog.String("action", j.action),
			slog.Int("attempts", n),
			slog.Duration("backoff", d.backoff.Delay(n)),
			slog.String("cause", string(netutil.Classify(err))),
		)
		if werr := d.backoff.Wait(ctx, n); werr != nil {
			return n, errors.Join(err, werr)
		}
	}
}
