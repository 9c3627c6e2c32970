package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taxibot/internal/channel"
)

type sentCall struct {
	to   tele.Recipient
	text string
	opts *tele.SendOptions
}

type editCall struct {
	msg  tele.Editable
	text string
	opts *tele.SendOptions
}

type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentCall
	edits   []editCall
	answers []*tele.CallbackResponse
	err     error
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	f.sent = append(f.sent, sentCall{to: to, text: what.(string), opts: opts[0].(*tele.SendOptions)})
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.edits = append(f.edits, editCall{msg: msg, text: what.(string), opts: opts[0].(*tele.SendOptions)})
	return &tele.Message{}, nil
}

func (f *fakeAPI) Respond(_ *tele.Callback, resp ...*tele.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.answers = append(f.answers, resp...)
	return nil
}

func TestMuxSendRoutesByFrontEnd(t *testing.T) {
	mux := NewMux()
	a, b := &fakeAPI{}, &fakeAPI{}
	mux.Register("A", a)
	mux.Register("B", b)

	ref, err := mux.Send(context.Background(), channel.Destination{FrontEnd: "B", Chat: -100, SubChannel: "topic-9"}, "hi",
		[][]channel.Button{{{Text: "Accept", Payload: "accept|1"}}})
	require.NoError(t, err)
	assert.Equal(t, channel.MessageRef{FrontEnd: "B", Chat: -100, MessageID: 1}, ref)

	assert.Empty(t, a.sent)
	require.Len(t, b.sent, 1)
	call := b.sent[0]
	assert.Equal(t, "-100", call.to.Recipient())
	assert.Equal(t, 9, call.opts.ThreadID)
	assert.Equal(t, tele.ModeHTML, call.opts.ParseMode)
	require.NotNil(t, call.opts.ReplyMarkup)
	assert.Equal(t, "accept|1", call.opts.ReplyMarkup.InlineKeyboard[0][0].Data)
}

func TestMuxUnknownFrontEnd(t *testing.T) {
	mux := NewMux()
	ctx := context.Background()

	_, err := mux.Send(ctx, channel.Destination{FrontEnd: "X", Chat: 1}, "hi", nil)
	assert.ErrorIs(t, err, channel.ErrUnknownFrontEnd)
	assert.ErrorIs(t, mux.Edit(ctx, channel.MessageRef{FrontEnd: "X"}, "hi", nil), channel.ErrUnknownFrontEnd)
	assert.ErrorIs(t, mux.Acknowledge(ctx, channel.Ack{FrontEnd: "X"}), channel.ErrUnknownFrontEnd)
}

func TestMuxEditDropsKeyboard(t *testing.T) {
	mux := NewMux()
	api := &fakeAPI{}
	mux.Register("A", api)

	require.NoError(t, mux.Edit(context.Background(), channel.MessageRef{FrontEnd: "A", Chat: -100, MessageID: 42}, "taken", nil))
	require.Len(t, api.edits, 1)
	id, chat := api.edits[0].msg.MessageSig()
	assert.Equal(t, "42", id)
	assert.Equal(t, int64(-100), chat)
	assert.Nil(t, api.edits[0].opts.ReplyMarkup)
}

func TestMuxAcknowledge(t *testing.T) {
	mux := NewMux()
	api := &fakeAPI{}
	mux.Register("A", api)

	require.NoError(t, mux.Acknowledge(context.Background(), channel.Ack{FrontEnd: "A", CallbackID: "cb", Text: "Taken", Alert: true}))
	require.Len(t, api.answers, 1)
	assert.Equal(t, "Taken", api.answers[0].Text)
	assert.True(t, api.answers[0].ShowAlert)
}

func TestMuxErrorsAreRedacted(t *testing.T) {
	mux := NewMux()
	cause := errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": timeout`)
	mux.Register("A", &fakeAPI{err: cause})

	_, err := mux.Send(context.Background(), channel.Destination{FrontEnd: "A", Chat: 1}, "hi", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "ABC-def")
	assert.ErrorIs(t, err, cause)
}

func TestMuxUnregisterKeepsNewerBinding(t *testing.T) {
	mux := NewMux()
	old, fresh := &fakeAPI{}, &fakeAPI{}
	mux.Register("A", old)
	mux.Register("A", fresh)

	mux.Unregister("A", old)
	assert.Equal(t, 1, mux.Len())

	mux.Unregister("A", fresh)
	assert.Equal(t, 0, mux.Len())
}

func TestThreadID(t *testing.T) {
	for in, want := range map[string]int{"9": 9, "topic-9": 9, " Topic-12 ": 12} {
		got, err := ThreadID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "topic-", "abc", "0", "-3"} {
		_, err := ThreadID(in)
		assert.Error(t, err, in)
	}
}
