// Package channeltest provides an in-memory channel.Outbound for tests.
package channeltest

import (
	"context"
	"sync"

	"github.com/m3rciful/taxibot/internal/channel"
)

// Sent is one recorded Send call.
type Sent struct {
	To      channel.Destination
	Text    string
	Buttons [][]channel.Button
	Ref     channel.MessageRef
}

// Edited is one recorded Edit call.
type Edited struct {
	Ref     channel.MessageRef
	Text    string
	Buttons [][]channel.Button
}

// Recorder records outbound traffic. Set SendErr or EditErr to simulate delivery failures.
type Recorder struct {
	mu      sync.Mutex
	nextID  int
	sent    []Sent
	edited  []Edited
	acks    []channel.Ack
	SendErr func(to channel.Destination) error
	EditErr error
}

// Send implements channel.Outbound.
func (r *Recorder) Send(_ context.Context, to channel.Destination, text string, buttons [][]channel.Button) (channel.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		if err := r.SendErr(to); err != nil {
			return channel.MessageRef{}, err
		}
	}
	r.nextID++
	ref := channel.MessageRef{FrontEnd: to.FrontEnd, Chat: to.Chat, MessageID: r.nextID}
	r.sent = append(r.sent, Sent{To: to, Text: text, Buttons: buttons, Ref: ref})
	return ref, nil
}

// Edit implements channel.Outbound.
func (r *Recorder) Edit(_ context.Context, ref channel.MessageRef, text string, buttons [][]channel.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.EditErr != nil {
		return r.EditErr
	}
	r.edited = append(r.edited, Edited{Ref: ref, Text: text, Buttons: buttons})
	return nil
}

// Acknowledge implements channel.Outbound.
func (r *Recorder) Acknowledge(_ context.Context, ack channel.Ack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks = append(r.acks, ack)
	return nil
}

// Sent returns a copy of the recorded sends.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns the sends addressed to a chat.
func (r *Recorder) SentTo(chat int64) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.To.Chat == chat {
			out = append(out, s)
		}
	}
	return out
}

// Edited returns a copy of the recorded edits.
func (r *Recorder) Edited() []Edited {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edited(nil), r.edited...)
}

// Acks returns a copy of the recorded callback answers.
func (r *Recorder) Acks() []channel.Ack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]channel.Ack(nil), r.acks...)
}
