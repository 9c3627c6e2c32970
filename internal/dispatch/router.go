// Package dispatch fans updates from every front-end into one routing
// pipeline: classify, order per conversation, run the matching handler.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/commands"
	"github.com/m3rciful/taxibot/core/telegram/state"
	"github.com/m3rciful/taxibot/internal/booking"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/claim"
	"github.com/m3rciful/taxibot/internal/metrics"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"
)

// Fleet starts and stops front-end loops at runtime. Supervisor implements it.
type Fleet interface {
	Attach(fe registry.FrontEnd) error
	Detach(token string) error
	Running() []string
}

// Deps are the collaborators of a Router.
type Deps struct {
	Registry *registry.Store
	Orders   *orders.Store
	Booking  *booking.Engine
	Claims   *claim.Resolver
	Out      channel.Outbound
	Admins   AllowList
	// Pool orders work per conversation; nil runs Dispatch inline.
	Pool *Pool
}

// Router classifies updates and runs exactly one handler per update.
type Router struct {
	registry *registry.Store
	orders   *orders.Store
	booking  *booking.Engine
	claims   *claim.Resolver
	out      channel.Outbound
	admins   AllowList
	pool     *Pool
	commands *commands.Registry
	fleet    Fleet
}

// NewRouter builds a router with the admin command table registered.
func NewRouter(d Deps) *Router {
	r := &Router{
		registry: d.Registry,
		orders:   d.Orders,
		booking:  d.Booking,
		claims:   d.Claims,
		out:      d.Out,
		admins:   d.Admins,
		pool:     d.Pool,
		commands: commands.NewRegistry(),
	}
	r.registerAdmin()
	return r
}

// SetFleet attaches the loop supervisor used by the front-end admin commands.
func (r *Router) SetFleet(f Fleet) { r.fleet = f }

// Commands exposes the admin command table, e.g. for the bot menu.
func (r *Router) Commands() *commands.Registry { return r.commands }

// Dispatch queues the update behind earlier updates of the same conversation.
func (r *Router) Dispatch(ctx context.Context, token string, upd channel.Update) error {
	if r.pool == nil {
		r.Handle(ctx, token, upd)
		return nil
	}
	key := state.Key{FrontEnd: token, Conversation: upd.Sender.ID}.String()
	err := r.pool.Submit(ctx, key, func(ctx context.Context) {
		r.Handle(ctx, token, upd)
	})
	if err != nil {
		reason := "closed"
		if !errors.Is(err, ErrPoolClosed) {
			reason = "canceled"
		}
		metrics.IncDropped(reason)
		logger.Warn(ctx, logger.CompDispatch, "update.dropped",
			slog.String("cause", reason),
			slog.Int("update_id", upd.ID),
		)
	}
	return err
}

// Handle routes one update synchronously. Delivery failures are logged and
// counted, never returned.
func (r *Router) Handle(ctx context.Context, token string, upd channel.Update) {
	fe, ok := r.registry.FrontEnd(token)
	if !ok || !fe.Active {
		metrics.IncDropped("inactive")
		return
	}
	ctx = logger.WithFrontEnd(ctx, fe.Name)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, upd.Sender.ID, upd.Chat)
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, logger.BuildRID(upd.ID, upd.Chat, upd.Sender.ID))
	}

	d := Classify(fe, upd, r.admins)
	role := "customer"
	if fe.Privileged {
		role = "main"
	}
	metrics.IncUpdate(role, d.Action.String())
	ctx = logger.WithHandler(ctx, d.Action.String())

	start := time.Now()
	status := "ok"
	switch d.Action {
	case ActionBegin:
		r.begin(ctx, token, upd)
	case ActionAdvance:
		status = r.advance(ctx, token, upd)
	case ActionClaim:
		r.claim(ctx, token, upd)
	case ActionAdmin:
		status = r.admin(ctx, token, upd, d)
	default:
		status = "skip"
	}

	logger.Debug(ctx, logger.CompDispatch, "update.routed",
		slog.String("status", status),
		slog.String("kind", upd.Kind.String()),
		slog.Duration("duration", time.Since(start)),
	)
}

func (r *Router) begin(ctx context.Context, token string, upd channel.Update) {
	res := r.booking.Begin(ctx, conversationKey(token, upd))
	r.reply(ctx, token, upd.Chat, res.Text, nil)
}

func (r *Router) advance(ctx context.Context, token string, upd channel.Update) string {
	res, err := r.booking.Advance(ctx, booking.Input{
		Key:  conversationKey(token, upd),
		Chat: upd.Chat,
		Text: upd.Text,
	})
	switch {
	case errors.Is(err, booking.ErrNotStarted):
		return "skip"
	case err != nil:
		logger.Error(ctx, logger.CompDispatch, "fsm.failed", slog.String("err", err.Error()))
		return "fail"
	}
	r.reply(ctx, token, upd.Chat, res.Text, nil)
	if res.Kind == booking.Finalized && res.Order != nil {
		r.claims.Publish(ctx, *res.Order)
	}
	return "ok"
}

func (r *Router) claim(ctx context.Context, token string, upd channel.Update) {
	ack := channel.Ack{FrontEnd: token, CallbackID: upd.CallbackID}
	action, id, err := claim.Parse(upd.Payload)
	if err != nil {
		logger.Debug(ctx, logger.CompDispatch, "update.dropped",
			slog.String("cause", "bad_payload"),
			slog.String("payload", logger.SanitizeLimit(upd.Payload, 64)),
		)
		ack.Text = "Unsupported action."
	} else {
		out := r.claims.Claim(ctx, id, upd.Sender, action == claim.ActionAccept)
		ack.Text = claim.Toast(out)
		ack.Alert = out == claim.AlreadyResolved || out == claim.NotFound
	}
	if err := r.out.Acknowledge(ctx, ack); err != nil {
		metrics.IncDeliveryError("ack")
		logger.Warn(ctx, logger.CompDispatch, "delivery.failed",
			slog.String("op", "ack"),
			slog.String("err", err.Error()),
		)
	}
}

func (r *Router) admin(ctx context.Context, token string, upd channel.Update, d Decision) string {
	reply, ok, err := r.commands.Run(ctx, commands.Request{
		Name:   d.Command,
		Args:   d.Args,
		Sender: upd.Sender,
		Chat:   upd.Chat,
	})
	if !ok {
		logger.Debug(ctx, logger.CompDispatch, "update.dropped",
			slog.String("cause", "unknown_command"),
			slog.String("command", d.Command),
		)
		return "skip"
	}
	status := "ok"
	if err != nil {
		status = "fail"
		logger.Info(ctx, logger.CompDispatch, "admin.rejected",
			slog.String("command", d.Command),
			slog.String("err", err.Error()),
		)
	} else {
		logger.Info(ctx, logger.CompDispatch, "admin.executed", slog.String("command", d.Command))
	}
	if reply != "" {
		r.reply(ctx, token, upd.Chat, reply, nil)
	}
	return status
}

func (r *Router) reply(ctx context.Context, token string, chat int64, text string, buttons [][]channel.Button) {
	if text == "" {
		return
	}
	_, err := r.out.Send(ctx, channel.Destination{FrontEnd: token, Chat: chat}, text, buttons)
	if err != nil {
		metrics.IncDeliveryError("reply")
		logger.Warn(ctx, logger.CompDispatch, "delivery.failed",
			slog.String("op", "reply"),
			slog.String("err", err.Error()),
		)
	}
}

func conversationKey(token string, upd channel.Update) state.Key {
	return state.Key{FrontEnd: token, Conversation: upd.Sender.ID}
}
