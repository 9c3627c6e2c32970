package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/commands"
	tghelpers "github.com/m3rciful/taxibot/core/telegram/helpers"
	"github.com/m3rciful/taxibot/core/telegram/middleware"
	tgsender "github.com/m3rciful/taxibot/core/telegram/sender"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/dispatch"
	"github.com/m3rciful/taxibot/internal/registry"

	tele "gopkg.in/telebot.v4"
)

// errPollerStopped is reported when a poll loop ends on its own.
var errPollerStopped = errors.New("telegram: poller stopped")

// Sink receives every converted update of every front-end.
type Sink interface {
	Dispatch(ctx context.Context, token string, upd channel.Update) error
}

// ConnectorOptions configures Connector.
type ConnectorOptions struct {
	Mux    *Mux
	Sink   Sink
	Client *http.Client
	Poller PollerOptions
	// Menu is published as the command list of the main bot.
	Menu      []tele.Command
	RateLimit middleware.RateLimitOptions
}

// Connector opens long-poll connections for front-ends. It implements
// dispatch.Connector.
type Connector struct {
	opts ConnectorOptions
}

// NewConnector returns a Connector; Mux and Sink are required.
func NewConnector(opts ConnectorOptions) *Connector {
	if opts.Client == nil {
		opts.Client = BuildHTTPClient(opts.Poller.Timeout())
	}
	return &Connector{opts: opts}
}

// Connect validates the credential, wires handlers and binds the bot to the
// Mux. The returned loop polls until its context is done.
func (c *Connector) Connect(ctx context.Context, fe registry.FrontEnd) (dispatch.Loop, error) {
	if c.opts.Mux == nil || c.opts.Sink == nil {
		return nil, errors.New("telegram: connector requires mux and sink")
	}
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:       fe.Token,
		Poller:      BuildPoller(c.opts.Poller),
		Client:      c.opts.Client,
		Synchronous: true,
		OnError: func(err error, tc tele.Context) {
			ectx := ctx
			if tc != nil {
				ectx = tghelpers.BuildContext(ctx, tc)
			}
			logger.Error(ectx, logger.CompTG, "handler.error",
				slog.String("err", tgsender.SanitizeError(err)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: connect %s: %w", fe.Name, tgsender.Redacted(err))
	}

	if err := bot.RemoveWebhook(); err != nil {
		logger.Warn(ctx, logger.CompWire, "webhook.delete_failed",
			slog.String("err", tgsender.SanitizeError(err)),
		)
	}

	for _, mw := range DefaultMiddlewares(ctx, fe, c.opts.RateLimit) {
		bot.Use(mw.Use)
	}
	handle := func(tc tele.Context) error {
		upd, ok := ToUpdate(tc)
		if !ok {
			return nil
		}
		return c.opts.Sink.Dispatch(tghelpers.BuildContext(ctx, tc), fe.Token, upd)
	}
	bot.Handle(tele.OnText, handle)
	bot.Handle(tele.OnCallback, handle)

	if fe.Privileged && len(c.opts.Menu) > 0 {
		if err := bot.SetCommands(c.opts.Menu); err != nil {
			logger.Warn(ctx, logger.CompWire, "commands.set_failed",
				slog.String("err", tgsender.SanitizeError(err)),
			)
		}
	}

	c.opts.Mux.Register(fe.Token, bot)
	logger.Info(ctx, logger.CompWire, "frontend.connected",
		slog.String("bot", bot.Me.Username),
		slog.Bool("main", fe.Privileged),
		slog.Duration("duration", logger.Took(start)),
	)
	return &pollLoop{bot: bot, mux: c.opts.Mux, token: fe.Token}, nil
}

type pollLoop struct {
	bot   *tele.Bot
	mux   *Mux
	token string
}

// Run polls until ctx is done; the bot is unbound from the Mux on return.
func (l *pollLoop) Run(ctx context.Context) error {
	defer l.mux.Unregister(l.token, l.bot)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.bot.Start()
	}()

	select {
	case <-ctx.Done():
		l.bot.Stop()
		<-done
		return nil
	case <-done:
		return errPollerStopped
	}
}

// MenuFrom converts command entries to the Telegram command menu.
func MenuFrom(entries []commands.Entry) []tele.Command {
	menu := make([]tele.Command, 0, len(entries))
	for _, e := range entries {
		menu = append(menu, tele.Command{Text: e.Name, Description: e.Description})
	}
	return menu
}
