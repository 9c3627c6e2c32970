// Package claim publishes orders to the driver group and arbitrates which
// driver wins each one.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/metrics"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"
)

// Outcome is the result of one claim attempt.
type Outcome int

const (
	// Accepted: the presser now owns the order.
	Accepted Outcome = iota + 1
	// Declined: the presser passed; the order stays claimable for others.
	Declined
	// AlreadyResolved: the order is claimed, or this driver already declined it.
	AlreadyResolved
	// NotFound: no order with this id.
	NotFound
)

// String is the metrics label of o.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Declined:
		return "declined"
	case AlreadyResolved:
		return "taken"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

var errResolved = errors.New("claim: already resolved")

// Notifier delivers a message to a customer without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, to channel.Destination, text string)
}

// Config addresses the driver group reached through the privileged front-end.
type Config struct {
	FrontEnd string
	Group    int64
}

// Resolver owns publication and claim arbitration.
type Resolver struct {
	cfg    Config
	orders *orders.Store
	routes *registry.Store
	out    channel.Outbound
	notify Notifier

	editMu sync.Mutex
	edits  map[string]*sync.Mutex
}

// NewResolver wires a resolver.
func NewResolver(cfg Config, store *orders.Store, routes *registry.Store, out channel.Outbound, notify Notifier) *Resolver {
	return &Resolver{
		cfg:    cfg,
		orders: store,
		routes: routes,
		out:    out,
		notify: notify,
		edits:  make(map[string]*sync.Mutex),
	}
}

// Target returns the destination an order is announced to.
func (r *Resolver) Target(o orders.Order) channel.Destination {
	dest := channel.Destination{FrontEnd: r.cfg.FrontEnd, Chat: r.cfg.Group}
	if route, ok := r.routes.Route(registry.RouteName(o.Origin, o.Destination)); ok && route.Bound() {
		dest.SubChannel = route.Channel
	}
	return dest
}

// Publish announces the order to its route's topic, or to the group itself when
// the route is unbound. Delivery errors are logged and leave the order without
// an announcement.
func (r *Resolver) Publish(ctx context.Context, o orders.Order) (channel.MessageRef, bool) {
	ctx = logger.WithOrderID(ctx, o.ID)
	dest := r.Target(o)
	route := registry.RouteName(o.Origin, o.Destination)

	ref, err := r.out.Send(ctx, dest, Announcement(o), Buttons(o.ID))
	metrics.RecordPublish(dest.SubChannel != "", err)
	if err != nil {
		metrics.IncDeliveryError("publish")
		logger.Warn(ctx, logger.CompClaim, "delivery.failed",
			slog.String("op", "publish"),
			slog.String("route", route),
			slog.String("err", err.Error()),
		)
		return channel.MessageRef{}, false
	}
	if err := r.orders.SetAnnouncement(o.ID, ref); err != nil {
		logger.Warn(ctx, logger.CompClaim, "order.announcement_lost", slog.String("err", err.Error()))
	}
	logger.Info(ctx, logger.CompClaim, "order.published",
		slog.String("route", route),
		slog.String("channel", dest.SubChannel),
	)
	return ref, true
}

// Claim records a driver's answer. Exactly one accept wins an order; every later
// press, including the winner's, gets AlreadyResolved. A driver who declined
// cannot answer the same order again while others still may accept it.
func (r *Resolver) Claim(ctx context.Context, id string, claimant channel.User, accept bool) Outcome {
	ctx = logger.WithOrderID(ctx, id)
	o, err := r.orders.Update(id, func(o *orders.Order) error {
		if !o.Status.Claimable() || declined(o, claimant) {
			return errResolved
		}
		if accept {
			c := claimant
			o.Status = orders.StatusClaimed
			o.Claimant = &c
			return nil
		}
		o.Status = orders.StatusDeclined
		o.DeclinedBy = append(o.DeclinedBy, claimant)
		return nil
	})

	var out Outcome
	switch {
	case errors.Is(err, orders.ErrNotFound):
		out = NotFound
	case errors.Is(err, errResolved):
		out = AlreadyResolved
	case err != nil:
		logger.Error(ctx, logger.CompClaim, "claim.failed", slog.String("err", err.Error()))
		out = NotFound
	case accept:
		out = Accepted
	default:
		out = Declined
	}
	metrics.IncClaim(out.String())

	attrs := []slog.Attr{
		slog.String("outcome", out.String()),
		slog.String("claimant", claimant.Handle()),
		slog.Int64("user_id", claimant.ID),
	}
	if out == AlreadyResolved || out == NotFound {
		logger.Debug(ctx, logger.CompClaim, "claim.resolved", attrs...)
		return out
	}
	logger.Info(ctx, logger.CompClaim, "claim.resolved", attrs...)

	r.refresh(ctx, o.ID)
	if out == Accepted && r.notify != nil && o.Requester.Chat != 0 {
		r.notify.Notify(ctx, o.Requester, AcceptedNotice(o))
	}
	return out
}

// refresh re-renders the announcement from the latest order state. Edits for one
// order are serialized so the last edit always matches the stored status.
func (r *Resolver) refresh(ctx context.Context, id string) {
	mu := r.editLock(id)
	mu.Lock()
	defer mu.Unlock()

	o, ok := r.orders.Get(id)
	if !ok {
		r.forget(id, mu)
		return
	}
	if o.Announcement != nil {
		if err := r.out.Edit(ctx, *o.Announcement, Announcement(o), Keyboard(o)); err != nil {
			metrics.IncDeliveryError("edit")
			logger.Warn(ctx, logger.CompClaim, "delivery.failed",
				slog.String("op", "edit"),
				slog.String("err", err.Error()),
			)
		}
	}
	// A claimed order is never edited again.
	if o.Status == orders.StatusClaimed {
		r.forget(id, mu)
	}
}

func (r *Resolver) editLock(id string) *sync.Mutex {
	r.editMu.Lock()
	defer r.editMu.Unlock()
	mu, ok := r.edits[id]
	if !ok {
		mu = &sync.Mutex{}
		r.edits[id] = mu
	}
	return mu
}

// forget drops the edit lock of id unless a newer one already replaced it.
func (r *Resolver) forget(id string, mu *sync.Mutex) {
	r.editMu.Lock()
	defer r.editMu.Unlock()
	if r.edits[id] == mu {
		delete(r.edits, id)
	}
}

func declined(o *orders.Order, u channel.User) bool {
	for _, d := range o.DeclinedBy {
		if d.ID == u.ID {
			return true
		}
	}
	return false
}
