// Package callbacks reads button payloads from Telegram callback queries.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data returns the payload carried by a callback. Telebot's
// "\f<unique>|<data>" encoding is flattened to "<unique>|<data>"; raw data
// is returned unchanged.
func Data(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		if cb.Data == "" {
			return cb.Unique
		}
		return cb.Unique + "|" + cb.Data
	}
	return strings.TrimSpace(strings.TrimPrefix(cb.Data, "\f"))
}
