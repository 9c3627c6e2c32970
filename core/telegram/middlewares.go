package telegram

import (
	"context"

	"github.com/m3rciful/taxibot/core/telegram/middleware"
	"github.com/m3rciful/taxibot/internal/registry"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// DefaultMiddlewares builds the chain for one front-end. Customer front-ends
// are rate limited per user; the main bot is not.
func DefaultMiddlewares(base context.Context, fe registry.FrontEnd, limit middleware.RateLimitOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware(base)},
	}
	if !fe.Privileged && limit.Interval > 0 {
		mws = append(mws, Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(limit)})
	}
	return mws
}
