// Package channel describes the transport-neutral shape of inbound updates and
// outbound messages exchanged between the dispatch core and the bot front-ends.
package channel

import (
	"context"
	"errors"
)

// ErrUnknownFrontEnd is returned by an Outbound when no connection is registered
// for the destination front-end.
var ErrUnknownFrontEnd = errors.New("channel: unknown front-end")

// Kind discriminates inbound updates.
type Kind int

const (
	// KindText is a plain text message or command.
	KindText Kind = iota + 1
	// KindButton is an inline button press.
	KindButton
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindButton:
		return "button"
	default:
		return "unknown"
	}
}

// User identifies the person behind an update.
type User struct {
	ID       int64
	Username string
	Name     string
}

// Handle returns the best human-readable handle for the user.
func (u User) Handle() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.Name != "" {
		return u.Name
	}
	return "unknown"
}

// Update is one inbound event delivered by a front-end connection.
type Update struct {
	ID   int
	Kind Kind
	// Sender is the message author for text updates and the presser for buttons.
	Sender User
	Chat   int64
	Text   string

	// Button-only fields.
	ThreadID   int
	MessageID  int
	CallbackID string
	Payload    string
}

// Destination addresses a chat reachable through a front-end.
type Destination struct {
	FrontEnd string
	Chat     int64
	// SubChannel selects a topic inside the chat; empty targets the chat itself.
	SubChannel string
}

// MessageRef points at a message previously sent through Outbound.
type MessageRef struct {
	FrontEnd  string
	Chat      int64
	MessageID int
}

// Button is one inline button with an opaque callback payload.
type Button struct {
	Text    string
	Payload string
}

// Ack answers a button press.
type Ack struct {
	FrontEnd   string
	CallbackID string
	Text       string
	Alert      bool
}

// Outbound delivers messages through the front-end that owns the destination.
type Outbound interface {
	Send(ctx context.Context, to Destination, text string, buttons [][]Button) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string, buttons [][]Button) error
	Acknowledge(ctx context.Context, ack Ack) error
}
