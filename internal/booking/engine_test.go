package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/taxibot/core/telegram/state"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/orders"
)

var scenario = []string{"123 Main St", "456 Oak Ave", "+15551234", "none", "now", "call on arrival", "2"}

func newEngine(t *testing.T) (*Engine, state.Manager, *orders.Store) {
	t.Helper()
	sessions := state.NewMemoryManager()
	store := orders.NewStore()
	e := New(sessions, store)
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("order-%d", n)
	}
	return e, sessions, store
}

func advance(t *testing.T, e *Engine, key state.Key, text string) Result {
	t.Helper()
	res, err := e.Advance(context.Background(), Input{Key: key, Chat: key.Conversation, Text: text})
	require.NoError(t, err)
	return res
}

func TestAdvanceRequiresBegin(t *testing.T) {
	e, sessions, _ := newEngine(t)
	key := state.Key{FrontEnd: "C1", Conversation: 7}

	_, err := e.Advance(context.Background(), Input{Key: key, Text: "hello"})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, 0, sessions.Len())
}

func TestCollectsFieldsInOrder(t *testing.T) {
	e, sessions, _ := newEngine(t)
	key := state.Key{FrontEnd: "C1", Conversation: 7}

	begin := e.Begin(context.Background(), key)
	assert.Equal(t, Prompt, begin.Kind)
	assert.Equal(t, StateOrigin, begin.State)

	var last Result
	for _, text := range scenario {
		last = advance(t, e, key, text)
		require.Equal(t, Prompt, last.Kind, "input %q", text)
	}
	assert.Equal(t, StateConfirmation, last.State)
	assert.Contains(t, last.Text, "123 Main St")

	want := []state.Field{
		{Name: FieldOrigin, Value: "123 Main St"},
		{Name: FieldDestination, Value: "456 Oak Ave"},
		{Name: FieldContact, Value: "+15551234"},
		{Name: FieldLuggage, Value: "none"},
		{Name: FieldTime, Value: "now"},
		{Name: FieldNotes, Value: "call on arrival"},
		{Name: FieldPassengers, Value: 2},
	}
	got := sessions.Get(key)
	assert.Equal(t, StateConfirmation, got.State)
	if diff := cmp.Diff(want, got.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestRejectsInvalidInputWithoutAdvancing(t *testing.T) {
	tests := []struct {
		name  string
		valid []string
		bad   string
		state state.State
	}{
		{"blank origin", nil, "   ", StateOrigin},
		{"blank notes", scenario[:5], "", StateNotes},
		{"zero passengers", scenario[:6], "0", StatePassengers},
		{"negative passengers", scenario[:6], "-3", StatePassengers},
		{"word passengers", scenario[:6], "two", StatePassengers},
		{"unclear confirmation", scenario, "maybe", StateConfirmation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sessions, _ := newEngine(t)
			key := state.Key{FrontEnd: "C1", Conversation: 1}
			e.Begin(context.Background(), key)
			for _, v := range tt.valid {
				advance(t, e, key, v)
			}
			before := sessions.Get(key)

			res := advance(t, e, key, tt.bad)
			assert.Equal(t, Rejected, res.Kind)
			assert.NotEmpty(t, res.Text)
			after := sessions.Get(key)
			assert.Equal(t, tt.state, after.State)
			assert.Equal(t, before, after)
		})
	}
}

func TestConfirmYesCreatesOrder(t *testing.T) {
	e, sessions, store := newEngine(t)
	key := state.Key{FrontEnd: "C1", Conversation: 99}
	e.Begin(context.Background(), key)
	for _, v := range scenario {
		advance(t, e, key, v)
	}

	res := advance(t, e, key, " YES ")
	require.Equal(t, Finalized, res.Kind)
	require.NotNil(t, res.Order)
	assert.Equal(t, PromptReceived, res.Text)

	want := orders.Order{
		ID:          "order-1",
		Origin:      "123 Main St",
		Destination: "456 Oak Ave",
		Contact:     "+15551234",
		Luggage:     "none",
		Time:        "now",
		Notes:       "call on arrival",
		Passengers:  2,
		Status:      orders.StatusPending,
		FrontEnd:    "C1",
		Requester:   channel.Destination{FrontEnd: "C1", Chat: 99},
	}
	ignoreTimes := cmpopts.IgnoreFields(orders.Order{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, *res.Order, ignoreTimes); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	stored, ok := store.Get("order-1")
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(want, stored, ignoreTimes))

	assert.False(t, e.InProgress(key))
	assert.Equal(t, 0, sessions.Len())
}

func TestFailedStoreKeepsConfirmation(t *testing.T) {
	e, sessions, store := newEngine(t)
	e.newID = func() string { return "dup" }
	_, err := store.Add(orders.Order{ID: "dup"})
	require.NoError(t, err)

	key := state.Key{FrontEnd: "C1", Conversation: 3}
	e.Begin(context.Background(), key)
	for _, v := range scenario {
		advance(t, e, key, v)
	}

	_, err = e.Advance(context.Background(), Input{Key: key, Chat: 3, Text: "yes"})
	require.ErrorIs(t, err, orders.ErrExists)
	got := sessions.Get(key)
	assert.Equal(t, StateConfirmation, got.State)
	assert.Len(t, got.Fields, len(scenario))
	assert.Len(t, store.All(), 1)
}

func TestConcurrentConversationsFinalize(t *testing.T) {
	e, sessions, store := newEngine(t)
	e.newID = sequentialIDs()

	inputs := append(append([]string(nil), scenario...), "yes")
	var wg sync.WaitGroup
	for c := int64(1); c <= 8; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := state.Key{FrontEnd: "C1", Conversation: c}
			e.Begin(context.Background(), key)
			for _, v := range inputs {
				if _, err := e.Advance(context.Background(), Input{Key: key, Chat: c, Text: v}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, store.All(), 8)
	assert.Equal(t, 0, sessions.Len())
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("order-%d", n)
	}
}

func TestConfirmNoCancels(t *testing.T) {
	e, sessions, store := newEngine(t)
	key := state.Key{FrontEnd: "C1", Conversation: 5}
	e.Begin(context.Background(), key)
	for _, v := range scenario {
		advance(t, e, key, v)
	}

	res := advance(t, e, key, "No")
	assert.Equal(t, Prompt, res.Kind)
	assert.Equal(t, PromptCancelled, res.Text)
	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, 0, store.Len())

	_, err := e.Advance(context.Background(), Input{Key: key, Text: "yes"})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestBeginRestartsDialog(t *testing.T) {
	e, sessions, _ := newEngine(t)
	key := state.Key{FrontEnd: "C1", Conversation: 3}
	e.Begin(context.Background(), key)
	advance(t, e, key, "A")
	advance(t, e, key, "B")

	res := e.Begin(context.Background(), key)
	assert.Equal(t, StateOrigin, res.State)
	assert.Empty(t, sessions.Get(key).Fields)
}

func TestConversationsAreIsolatedPerFrontEnd(t *testing.T) {
	e, sessions, _ := newEngine(t)
	a := state.Key{FrontEnd: "C1", Conversation: 1}
	b := state.Key{FrontEnd: "C2", Conversation: 1}
	e.Begin(context.Background(), a)
	advance(t, e, a, "A")

	_, err := e.Advance(context.Background(), Input{Key: b, Text: "A"})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, StateDestination, sessions.Get(a).State)
}

func TestSummaryEscapesHTML(t *testing.T) {
	s := state.Session{Fields: []state.Field{{Name: FieldOrigin, Value: "<script>"}}}
	assert.Contains(t, Summary(s), "&lt;script&gt;")
}
