package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/taxibot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware builds the request context from base, which already names
// the front-end, and logs a sampled line per handled update.
func LoggerMiddleware(base context.Context) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(base, c)
			err := next(c)
			if err == nil && !logger.ShouldSampleDebug() {
				return err
			}

			attrs := updateAttrs(c)
			if at, ok := tghelpers.Received(c); ok {
				attrs = append(attrs, slog.Duration("duration", logger.Took(at)))
			}
			if err != nil {
				logger.Warn(ctx, logger.CompTG, "update.failed", append(attrs,
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)...)
				return err
			}
			logger.Debug(ctx, logger.CompTG, "update.handled", append(attrs, slog.String("status", "ok"))...)
			return nil
		}
	}
}

func updateAttrs(c tele.Context) []slog.Attr {
	var attrs []slog.Attr
	if user := c.Sender(); user != nil && user.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		attrs = append(attrs,
			slog.String("kind", "button"),
			slog.String("payload", logger.SanitizeLimit(callbacks.Data(upd.Callback), 128)),
		)
	case upd.Message != nil:
		attrs = append(attrs,
			slog.String("kind", "text"),
			slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 256)),
		)
	}
	return attrs
}
