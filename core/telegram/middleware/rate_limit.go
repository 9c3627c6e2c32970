package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/taxibot/core/logger"
	tghelpers "github.com/m3rciful/taxibot/core/telegram/helpers"
	"github.com/m3rciful/taxibot/internal/metrics"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the sustained gap between updates of one user; Burst updates may arrive back to back.
	Interval  time.Duration
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL evicts limiters of users not seen for this long.
	IdleTTL time.Duration
}

// RateLimitMiddleware returns a middleware that applies a token bucket per user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limits := newLimiters(opts)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}

			upd := c.Update()
			kind := "other"
			switch {
			case upd.Callback != nil:
				kind = "callback"
			case upd.Message != nil:
				kind = "message"
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if limits.allow(user.ID, time.Now()) {
				return next(c)
			}
			metrics.IncDropped("rate_limited")
			ctx := tghelpers.BuildContext(context.Background(), c)
			logger.Warn(ctx, logger.CompTG, "update.rate_limited",
				slog.String("kind", kind),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

type limiters struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	ttl       time.Duration
	byUser    map[int64]*limiterEntry
	lastSweep time.Time
}

func newLimiters(opts RateLimitOptions) *limiters {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &limiters{
		every:  rate.Every(opts.Interval),
		burst:  burst,
		ttl:    ttl,
		byUser: make(map[int64]*limiterEntry),
	}
}

func (l *limiters) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		for id, e := range l.byUser {
			if now.Sub(e.seen) > l.ttl {
				delete(l.byUser, id)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.byUser[userID]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.byUser[userID] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

func (l *limiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byUser)
}
