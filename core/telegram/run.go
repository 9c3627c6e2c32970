package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/taxibot/core/config"
	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/middleware"
	"github.com/m3rciful/taxibot/internal/dispatch"
	"github.com/m3rciful/taxibot/internal/registry"

	tele "gopkg.in/telebot.v4"
)

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *registry.Store
	Sink     Sink
	Menu     []tele.Command
	// Mux is created when nil; pass one to share it with the Sink's outbound side.
	Mux *Mux

	OnLimited tele.HandlerFunc

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Supervisor *dispatch.Supervisor
	Mux        *Mux
}

// RunTelegram starts one poll loop per active front-end and blocks until ctx
// is done and every loop has stopped.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Registry == nil || opts.Sink == nil {
		return fmt.Errorf("telegram: registry and sink are required")
	}
	cfg := opts.Config

	mux := opts.Mux
	if mux == nil {
		mux = NewMux()
	}
	poller := PollerOptions{LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds}
	connector := NewConnector(ConnectorOptions{
		Mux:       mux,
		Sink:      opts.Sink,
		Client:    BuildHTTPClient(poller.Timeout()),
		Poller:    poller,
		Menu:      opts.Menu,
		RateLimit: rateLimitOptions(cfg, opts.OnLimited),
	})

	restart := time.Duration(cfg.Dispatch.RestartDelayMS) * time.Millisecond
	sup := dispatch.NewSupervisor(connector, dispatch.SupervisorOptions{RestartDelay: restart})
	rt := Runtime{Supervisor: sup, Mux: mux}

	var active []registry.FrontEnd
	for _, fe := range opts.Registry.FrontEnds() {
		if fe.Active {
			active = append(active, fe)
		}
	}
	logger.Info(ctx, logger.CompWire, "mode",
		slog.String("mode", "polling"),
		slog.Duration("timeout", poller.Timeout()),
		slog.Int("frontends", len(active)),
	)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := sup.Run(ctx, active)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func rateLimitOptions(cfg *coreconfig.Config, onLimited tele.HandlerFunc) middleware.RateLimitOptions {
	ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, t := range cfg.RateLimit.ExcludeUpdates {
		ex[strings.ToLower(t)] = struct{}{}
	}
	return middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   ex,
		OnLimited: onLimited,
	}
}
