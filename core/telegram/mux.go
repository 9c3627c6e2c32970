package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgkeyboard "github.com/m3rciful/taxibot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/taxibot/core/telegram/sender"
	"github.com/m3rciful/taxibot/internal/channel"

	tele "gopkg.in/telebot.v4"
)

// API is the subset of *tele.Bot used for outbound traffic.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Mux routes outbound messages to the connection of the addressed front-end.
// It implements channel.Outbound.
type Mux struct {
	mu   sync.RWMutex
	bots map[string]API
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{bots: make(map[string]API)}
}

// Register binds token to api, replacing any previous binding.
func (m *Mux) Register(token string, api API) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots[token] = api
}

// Unregister removes the binding for token only if it still points at api, so
// a restarted loop is not unbound by its predecessor's shutdown.
func (m *Mux) Unregister(token string, api API) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.bots[token]; ok && cur == api {
		delete(m.bots, token)
	}
}

// Len returns the number of bound front-ends.
func (m *Mux) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bots)
}

func (m *Mux) lookup(token string) (API, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	api, ok := m.bots[token]
	if !ok {
		return nil, channel.ErrUnknownFrontEnd
	}
	return api, nil
}

// Send implements channel.Outbound.
func (m *Mux) Send(_ context.Context, to channel.Destination, text string, buttons [][]channel.Button) (channel.MessageRef, error) {
	api, err := m.lookup(to.FrontEnd)
	if err != nil {
		return channel.MessageRef{}, err
	}
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           tgkeyboard.Inline(buttons),
	}
	if to.SubChannel != "" {
		thread, err := ThreadID(to.SubChannel)
		if err != nil {
			return channel.MessageRef{}, err
		}
		opts.ThreadID = thread
	}
	msg, err := api.Send(tele.ChatID(to.Chat), text, opts)
	if err != nil {
		return channel.MessageRef{}, tgsender.Redacted(err)
	}
	ref := channel.MessageRef{FrontEnd: to.FrontEnd, Chat: to.Chat}
	if msg != nil {
		ref.MessageID = msg.ID
	}
	return ref, nil
}

// Edit implements channel.Outbound. Editing without buttons drops the keyboard.
func (m *Mux) Edit(_ context.Context, ref channel.MessageRef, text string, buttons [][]channel.Button) error {
	api, err := m.lookup(ref.FrontEnd)
	if err != nil {
		return err
	}
	stored := tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.Chat}
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           tgkeyboard.Inline(buttons),
	}
	if _, err := api.Edit(stored, text, opts); err != nil {
		return tgsender.Redacted(err)
	}
	return nil
}

// Acknowledge implements channel.Outbound.
func (m *Mux) Acknowledge(_ context.Context, ack channel.Ack) error {
	api, err := m.lookup(ack.FrontEnd)
	if err != nil {
		return err
	}
	resp := &tele.CallbackResponse{Text: ack.Text, ShowAlert: ack.Alert}
	if err := api.Respond(&tele.Callback{ID: ack.CallbackID}, resp); err != nil {
		return tgsender.Redacted(err)
	}
	return nil
}

// ThreadID parses a sub-channel of the form "topic-9" or "9" into a forum topic id.
func ThreadID(sub string) (int, error) {
	id, err := channel.ParseTopic(sub)
	if err != nil {
		return 0, fmt.Errorf("telegram: %w", err)
	}
	return id, nil
}
