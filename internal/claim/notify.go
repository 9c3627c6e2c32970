package claim

import (
	"context"
	"log/slog"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/metrics"
)

// Queue runs jobs in the background; sender.Dispatcher implements it.
type Queue interface {
	Enqueue(ctx context.Context, action, endpoint string, run func() error) error
}

// AsyncNotifier sends customer notices through a background queue. When the
// queue rejects a job the notice is sent inline. Failed sends are not retried.
type AsyncNotifier struct {
	Out   channel.Outbound
	Queue Queue
}

// Notify implements Notifier.
func (n AsyncNotifier) Notify(ctx context.Context, to channel.Destination, text string) {
	ctx = context.WithoutCancel(ctx)
	run := func() error {
		_, err := n.Out.Send(ctx, to, text, nil)
		if err != nil {
			metrics.IncDeliveryError("notify")
		}
		return err
	}
	if n.Queue == nil {
		n.inline(ctx, run)
		return
	}
	if err := n.Queue.Enqueue(ctx, "notify.requester", "sendMessage", run); err != nil {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("action", "notify.requester"),
			slog.String("err", err.Error()),
		)
		n.inline(ctx, run)
	}
}

func (n AsyncNotifier) inline(ctx context.Context, run func() error) {
	if err := run(); err != nil {
		logger.Warn(ctx, logger.CompClaim, "delivery.failed",
			slog.String("op", "notify"),
			slog.String("err", err.Error()),
		)
	}
}
