package state

import "strconv"

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Key identifies one conversation on one front-end.
type Key struct {
	FrontEnd     string
	Conversation int64
}

// String renders the key for logs and shard hashing.
func (k Key) String() string {
	return k.FrontEnd + "/" + strconv.FormatInt(k.Conversation, 10)
}

// Field is one collected value.
type Field struct {
	Name  string
	Value any
}

// Session stores conversation state and the fields collected so far, in order.
type Session struct {
	State  State
	Fields []Field
}

// Lookup returns the value stored under name.
func (s Session) Lookup(name string) (any, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the string value stored under name.
func (s Session) String(name string) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Int returns the int value stored under name.
func (s Session) Int(name string) (int, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

func (s Session) clone() Session {
	return Session{State: s.State, Fields: append([]Field(nil), s.Fields...)}
}

// Manager orchestrates conversation sessions and FSM state transitions.
type Manager interface {
	// Get returns a copy of the session, or an idle session when none exists.
	Get(key Key) Session
	// Update runs fn on the session under the store lock and persists the result.
	// A session left idle with no fields is removed.
	Update(key Key, fn func(s *Session)) Session
	// Clear removes the session.
	Clear(key Key)
	// InProgress reports whether the conversation has an active FSM state.
	InProgress(key Key) bool
	// Len returns the number of stored sessions.
	Len() int
}
