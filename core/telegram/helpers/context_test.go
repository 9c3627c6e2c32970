package helpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/taxibot/core/logger"

	tele "gopkg.in/telebot.v4"
)

type feKey struct{}

func TestBuildContextIsCached(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := bot.NewContext(tele.Update{
		ID:      12,
		Message: &tele.Message{Sender: &tele.User{ID: 5}, Chat: &tele.Chat{ID: 6}},
	})

	_, ok := Received(c)
	assert.False(t, ok)

	base := context.WithValue(context.Background(), feKey{}, "city")
	ctx := BuildContext(base, c)
	assert.Equal(t, "12:6:5", logger.RIDFrom(ctx))
	assert.Equal(t, 12, logger.UpdateIDFrom(ctx))
	assert.Equal(t, int64(5), logger.UserIDFrom(ctx))
	assert.Equal(t, "city", ctx.Value(feKey{}))

	again := BuildContext(context.Background(), c)
	assert.Equal(t, ctx, again)
	at, ok := Received(c)
	assert.True(t, ok)
	assert.False(t, at.IsZero())
}
