package telegram

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taxibot/internal/channel"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return bot
}

func TestToUpdateText(t *testing.T) {
	bot := offlineBot(t)
	c := bot.NewContext(tele.Update{
		ID: 7,
		Message: &tele.Message{
			ID:     3,
			Text:   "Airport",
			Sender: &tele.User{ID: 77, Username: "rider", FirstName: "Ann", LastName: "Lee"},
			Chat:   &tele.Chat{ID: 77, Type: tele.ChatPrivate},
		},
	})

	got, ok := ToUpdate(c)
	require.True(t, ok)
	want := channel.Update{
		ID:     7,
		Kind:   channel.KindText,
		Sender: channel.User{ID: 77, Username: "rider", Name: "Ann Lee"},
		Chat:   77,
		Text:   "Airport",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("update mismatch (-want +got):\n%s", diff)
	}
}

func TestToUpdateButton(t *testing.T) {
	bot := offlineBot(t)
	c := bot.NewContext(tele.Update{
		ID: 8,
		Callback: &tele.Callback{
			ID:     "cb-1",
			Data:   "accept_0b7e",
			Sender: &tele.User{ID: 5, FirstName: "Dan"},
			Message: &tele.Message{
				ID:       42,
				ThreadID: 9,
				Chat:     &tele.Chat{ID: -100500, Type: tele.ChatSuperGroup},
			},
		},
	})

	got, ok := ToUpdate(c)
	require.True(t, ok)
	want := channel.Update{
		ID:         8,
		Kind:       channel.KindButton,
		Sender:     channel.User{ID: 5, Name: "Dan"},
		Chat:       -100500,
		ThreadID:   9,
		MessageID:  42,
		CallbackID: "cb-1",
		Payload:    "accept_0b7e",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("update mismatch (-want +got):\n%s", diff)
	}
}

func TestToUpdateIgnoresOtherKinds(t *testing.T) {
	bot := offlineBot(t)

	_, ok := ToUpdate(bot.NewContext(tele.Update{ID: 1}))
	assert.False(t, ok)

	_, ok = ToUpdate(bot.NewContext(tele.Update{ID: 2, Message: &tele.Message{Text: "x", Chat: &tele.Chat{ID: 1}}}))
	assert.False(t, ok, "no sender")
}
