// Package keyboard converts transport-neutral button grids to Telegram markup.
package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taxibot/internal/channel"
)

// Inline builds an inline keyboard whose buttons carry the raw payload as
// callback data. An empty grid yields nil, which also strips the keyboard when
// a message is edited.
func Inline(rows [][]channel.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Text, Data: b.Payload})
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}
