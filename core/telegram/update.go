package telegram

import (
	"strings"

	"github.com/m3rciful/taxibot/core/telegram/callbacks"
	"github.com/m3rciful/taxibot/internal/channel"

	tele "gopkg.in/telebot.v4"
)

// ToUpdate converts a text message or button press into a channel.Update.
// Other update kinds, and updates without a sender, report false.
func ToUpdate(c tele.Context) (channel.Update, bool) {
	upd := c.Update()
	sender := c.Sender()
	if sender == nil {
		return channel.Update{}, false
	}
	out := channel.Update{
		ID:     upd.ID,
		Sender: userOf(sender),
	}
	if chat := c.Chat(); chat != nil {
		out.Chat = chat.ID
	}

	switch {
	case upd.Callback != nil:
		cb := upd.Callback
		out.Kind = channel.KindButton
		out.CallbackID = cb.ID
		out.Payload = callbacks.Data(cb)
		if msg := cb.Message; msg != nil {
			out.MessageID = msg.ID
			out.ThreadID = msg.ThreadID
			if msg.Chat != nil {
				out.Chat = msg.Chat.ID
			}
		}
		return out, true
	case upd.Message != nil:
		out.Kind = channel.KindText
		out.Text = upd.Message.Text
		return out, true
	default:
		return channel.Update{}, false
	}
}

func userOf(u *tele.User) channel.User {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	return channel.User{ID: u.ID, Username: u.Username, Name: name}
}
