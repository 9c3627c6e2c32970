// Package app wires the stores, the dispatch core and the Telegram transport.
package app

import (
	"context"
	"errors"
	"log/slog"

	coreconfig "github.com/m3rciful/taxibot/core/config"
	"github.com/m3rciful/taxibot/core/logger"
	coretelegram "github.com/m3rciful/taxibot/core/telegram"
	tgsender "github.com/m3rciful/taxibot/core/telegram/sender"
	"github.com/m3rciful/taxibot/core/telegram/state"
	"github.com/m3rciful/taxibot/internal/booking"
	"github.com/m3rciful/taxibot/internal/claim"
	"github.com/m3rciful/taxibot/internal/dispatch"
	"github.com/m3rciful/taxibot/internal/ops"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"

	tele "gopkg.in/telebot.v4"
)

// App holds the long-lived components of one process.
type App struct {
	cfg      *coreconfig.Config
	registry *registry.Store
	orders   *orders.Store
	pool     *dispatch.Pool
	sender   *tgsender.Dispatcher
	mux      *coretelegram.Mux
	router   *dispatch.Router
	ops      *ops.Server
}

// New builds the application graph over the given stores.
func New(cfg *coreconfig.Config, reg *registry.Store, store *orders.Store) (*App, error) {
	if cfg == nil || reg == nil || store == nil {
		return nil, errors.New("app: config and stores are required")
	}
	mux := coretelegram.NewMux()
	sender := tgsender.NewDispatcher(tgsender.Options{
		QueueSize: cfg.Sender.QueueSize,
		Workers:   cfg.Sender.Workers,
	})
	resolver := claim.NewResolver(
		claim.Config{FrontEnd: reg.Main().Token, Group: cfg.Telegram.GroupID},
		store, reg, mux,
		claim.AsyncNotifier{Out: mux, Queue: sender},
	)
	pool := dispatch.NewPool(cfg.Dispatch.Shards, cfg.Dispatch.QueueSize)
	router := dispatch.NewRouter(dispatch.Deps{
		Registry: reg,
		Orders:   store,
		Booking:  booking.New(state.NewMemoryManager(), store),
		Claims:   resolver,
		Out:      mux,
		Admins:   dispatch.NewAllowList(cfg.Telegram.AdminIDs...),
		Pool:     pool,
	})
	return &App{
		cfg:      cfg,
		registry: reg,
		orders:   store,
		pool:     pool,
		sender:   sender,
		mux:      mux,
		router:   router,
	}, nil
}

// CoreConfig returns the loaded configuration.
func (a *App) CoreConfig() *coreconfig.Config { return a.cfg }

// TelegramRunOptions describes how the transport should run this app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:    a.cfg,
		Registry:  a.registry,
		Sink:      a.router,
		Menu:      coretelegram.MenuFrom(a.router.Commands().List(true)),
		Mux:       a.mux,
		OnLimited: onLimited,
		OnStart:   a.start,
		OnStop:    a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	a.router.SetFleet(rt.Supervisor)
	if len(a.cfg.Telegram.AdminIDs) == 0 {
		logger.Warn(ctx, logger.CompApp, "admin.open",
			slog.String("hint", "set telegram.admin_ids to restrict admin commands"),
		)
	}
	if a.cfg.Ops.Listen == "" {
		return nil
	}
	srv, err := ops.Start(ctx, a.cfg.Ops.Listen, a.health(rt.Supervisor))
	if err != nil {
		return err
	}
	a.ops = srv
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	var err error
	if a.ops != nil {
		err = a.ops.Shutdown(ctx)
	}
	a.pool.Close()
	a.sender.Close()
	logger.Info(ctx, logger.CompApp, "stopped",
		slog.Int("orders", a.orders.Len()),
		slog.Uint64("notify_errors", a.sender.ErrorCount()),
	)
	return err
}

func (a *App) health(fleet dispatch.Fleet) ops.HealthFunc {
	return func() ops.Health {
		return ops.Health{
			FrontEnds:     fleet.Running(),
			PendingOrders: len(a.orders.Claimable()),
			QueuedNotices: a.sender.Pending(),
		}
	}
}

// onLimited answers throttled button presses so the client stops spinning.
func onLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: "Too many requests, slow down."})
}
