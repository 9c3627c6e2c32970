package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	LongPollTimeoutSeconds int
	// AllowedUpdates narrows the update types Telegram delivers; empty keeps
	// messages and button presses.
	AllowedUpdates []string
}

// Timeout returns the effective long-poll timeout.
func (o PollerOptions) Timeout() time.Duration {
	if o.LongPollTimeoutSeconds <= 0 {
		return defaultLongPollTimeout
	}
	return time.Duration(o.LongPollTimeoutSeconds) * time.Second
}

// BuildPoller returns a long poller for one front-end. Every front-end gets its
// own poller; telebot pollers are not shared between bots.
func BuildPoller(opts PollerOptions) *tele.LongPoller {
	allowed := opts.AllowedUpdates
	if len(allowed) == 0 {
		allowed = []string{"message", "callback_query"}
	}
	return &tele.LongPoller{
		Timeout:        opts.Timeout(),
		AllowedUpdates: allowed,
	}
}
