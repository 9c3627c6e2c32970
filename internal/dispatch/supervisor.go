package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/internal/metrics"
	"github.com/m3rciful/taxibot/internal/registry"
)

var (
	// ErrNotRunning is returned by Attach before Run or after shutdown.
	ErrNotRunning = errors.New("dispatch: supervisor not running")
	// ErrAttached is returned when the front-end already has a loop.
	ErrAttached = errors.New("dispatch: front-end already attached")
	// ErrDetached is returned when no loop runs for the front-end.
	ErrDetached = errors.New("dispatch: front-end not attached")
)

// Loop receives updates for one front-end until ctx is done or it fails.
type Loop interface {
	Run(ctx context.Context) error
}

// Connector opens a front-end connection. A Connect error is a startup error.
type Connector interface {
	Connect(ctx context.Context, fe registry.FrontEnd) (Loop, error)
}

// SupervisorOptions tunes restart behaviour.
type SupervisorOptions struct {
	// RestartDelay is the first backoff after a loop failure; it doubles up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
	// StableAfter resets the backoff once a loop has run this long.
	StableAfter time.Duration
}

type supervised struct {
	fe     registry.FrontEnd
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs one loop per front-end and restarts loops independently.
type Supervisor struct {
	connector Connector
	opts      SupervisorOptions

	mu      sync.Mutex
	ctx     context.Context
	group   *errgroup.Group
	loops   map[string]*supervised
	stopped bool
}

// NewSupervisor creates a supervisor; call Run to start it.
func NewSupervisor(c Connector, opts SupervisorOptions) *Supervisor {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 2 * time.Second
	}
	if opts.MaxRestartDelay < opts.RestartDelay {
		opts.MaxRestartDelay = 32 * opts.RestartDelay
	}
	if opts.StableAfter <= 0 {
		opts.StableAfter = time.Minute
	}
	return &Supervisor{
		connector: c,
		opts:      opts,
		loops:     make(map[string]*supervised),
	}
}

// Run connects every front-end and blocks until ctx is done and all loops have
// exited. Front-ends that fail to connect are skipped.
func (s *Supervisor) Run(ctx context.Context, fes []registry.FrontEnd) error {
	g, gctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	if s.group != nil {
		s.mu.Unlock()
		return fmt.Errorf("dispatch: supervisor already started")
	}
	s.ctx, s.group = gctx, g
	s.mu.Unlock()

	// Keeps the group alive so Attach can add loops until shutdown.
	g.Go(func() error {
		<-gctx.Done()
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		return nil
	})

	for _, fe := range fes {
		if err := s.Attach(fe); err != nil {
			logger.Warn(ctx, logger.CompWire, "frontend.skipped",
				slog.String("frontend", fe.Name),
				slog.String("err", err.Error()),
			)
		}
	}

	err := g.Wait()
	metrics.SetFrontEndsRunning(0)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Attach connects a front-end and supervises its loop.
func (s *Supervisor) Attach(fe registry.FrontEnd) error {
	s.mu.Lock()
	if s.group == nil || s.stopped {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if _, ok := s.loops[fe.Token]; ok {
		s.mu.Unlock()
		return ErrAttached
	}
	ctx, cancel := context.WithCancel(logger.WithFrontEnd(s.ctx, fe.Name))
	sv := &supervised{fe: fe, cancel: cancel, done: make(chan struct{})}
	s.loops[fe.Token] = sv
	s.mu.Unlock()

	loop, err := s.connect(ctx, fe)
	if err != nil {
		cancel()
		s.forget(fe.Token, sv)
		close(sv.done)
		metrics.IncFrontEndSkipped()
		return fmt.Errorf("connect %s: %w", fe.Name, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		s.forget(fe.Token, sv)
		close(sv.done)
		return ErrNotRunning
	}
	s.group.Go(func() error {
		defer close(sv.done)
		defer s.forget(fe.Token, sv)
		s.supervise(ctx, fe, loop)
		return nil
	})
	s.mu.Unlock()
	s.updateGauge()
	return nil
}

// Detach stops a front-end's loop and waits for it to exit.
func (s *Supervisor) Detach(token string) error {
	s.mu.Lock()
	sv, ok := s.loops[token]
	s.mu.Unlock()
	if !ok {
		return ErrDetached
	}
	sv.cancel()
	<-sv.done
	logger.Info(context.Background(), logger.CompWire, "loop.stopped", slog.String("frontend", sv.fe.Name))
	return nil
}

// Running lists the names of supervised front-ends.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.loops))
	for _, sv := range s.loops {
		names = append(names, sv.fe.Name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// Attached reports whether a loop runs for the token.
func (s *Supervisor) Attached(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loops[token]
	return ok
}

func (s *Supervisor) supervise(ctx context.Context, fe registry.FrontEnd, loop Loop) {
	delay := s.opts.RestartDelay
	restarts := 0
	for {
		logger.Info(ctx, logger.CompWire, "loop.started", slog.Int("restarts", restarts))
		started := time.Now()
		err := runLoop(ctx, loop)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) >= s.opts.StableAfter {
			delay = s.opts.RestartDelay
		}
		restarts++
		metrics.IncLoopRestart()
		logger.Error(ctx, logger.CompWire, "loop.restart",
			slog.String("err", errString(err)),
			slog.Int("restarts", restarts),
			slog.Duration("backoff", delay),
		)

		for {
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, s.opts.MaxRestartDelay)
			next, err := s.connect(ctx, fe)
			if err == nil {
				loop = next
				break
			}
			if ctx.Err() != nil {
				return
			}
			logger.Warn(ctx, logger.CompWire, "loop.reconnect_failed",
				slog.String("err", err.Error()),
				slog.Duration("backoff", delay),
			)
		}
	}
}

func (s *Supervisor) connect(ctx context.Context, fe registry.FrontEnd) (loop Loop, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connect panic: %v", r)
		}
	}()
	return s.connector.Connect(ctx, fe)
}

func (s *Supervisor) forget(token string, sv *supervised) {
	s.mu.Lock()
	if s.loops[token] == sv {
		delete(s.loops, token)
	}
	s.mu.Unlock()
	s.updateGauge()
}

func (s *Supervisor) updateGauge() {
	s.mu.Lock()
	n := len(s.loops)
	s.mu.Unlock()
	metrics.SetFrontEndsRunning(n)
}

func runLoop(ctx context.Context, loop Loop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, logger.CompWire, "loop.panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("loop panic: %v", r)
		}
	}()
	err = loop.Run(ctx)
	if err == nil && ctx.Err() == nil {
		err = errors.New("loop exited")
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
