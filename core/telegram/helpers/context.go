// Package helpers derives per-update request contexts for Telegram handlers.
package helpers

import (
	"context"
	"time"

	"github.com/m3rciful/taxibot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const slot = "taxibot.request"

type request struct {
	ctx      context.Context
	received time.Time
}

func lookup(c tele.Context) (request, bool) {
	if c == nil {
		return request{}, false
	}
	r, ok := c.Get(slot).(request)
	return r, ok
}

// BuildContext returns the request context of c, creating it from base on
// first use. The context carries the rid and the update, user and chat ids.
func BuildContext(base context.Context, c tele.Context) context.Context {
	if r, ok := lookup(c); ok {
		return r.ctx
	}
	if base == nil {
		base = context.Background()
	}
	if c == nil {
		return base
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID
	ctx := logger.WithUpdateMeta(base, updateID, userID, chatID)
	ctx = logger.WithRID(ctx, logger.BuildRID(updateID, chatID, userID))

	c.Set(slot, request{ctx: ctx, received: time.Now()})
	return ctx
}

// Received reports when the request context of c was first built.
func Received(c tele.Context) (time.Time, bool) {
	r, ok := lookup(c)
	return r.received, ok
}
