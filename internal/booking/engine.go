// Package booking drives the customer dialog that collects a taxi order.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/state"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/metrics"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"
)

// ErrNotStarted is returned by Advance when the conversation is idle.
var ErrNotStarted = errors.New("booking: conversation not started")

// Kind tells the caller what to do with a Result.
type Kind int

const (
	// Prompt asks for the next value.
	Prompt Kind = iota + 1
	// Rejected repeats the current step with a validation message.
	Rejected
	// Finalized carries the newly created order.
	Finalized
)

func (k Kind) String() string {
	switch k {
	case Prompt:
		return "prompt"
	case Rejected:
		return "rejected"
	case Finalized:
		return "finalized"
	}
	return "unknown"
}

// Result is the reply produced by one dialog step.
type Result struct {
	Kind  Kind
	Text  string
	State state.State
	// Order is set for Finalized results.
	Order *orders.Order
}

// Input is one customer message.
type Input struct {
	Key  state.Key
	Chat int64
	Text string
}

// Engine owns the dialog transitions. It is safe for concurrent use.
type Engine struct {
	sessions state.Manager
	orders   *orders.Store
	newID    func() string
}

// New wires the engine to its stores.
func New(sessions state.Manager, store *orders.Store) *Engine {
	return &Engine{
		sessions: sessions,
		orders:   store,
		newID:    uuid.NewString,
	}
}

// Begin resets the conversation and asks for the pickup location.
func (e *Engine) Begin(ctx context.Context, key state.Key) Result {
	e.sessions.Update(key, func(s *state.Session) {
		*s = state.Session{State: steps[0].state}
	})
	metrics.SetConversationsActive(e.sessions.Len())
	logger.Debug(ctx, logger.CompBooking, "fsm.begin",
		slog.Int64("chat_id", key.Conversation),
	)
	return Result{Kind: Prompt, Text: steps[0].prompt, State: steps[0].state}
}

// Advance feeds one message into the dialog. A confirmed dialog is stored as
// an order once the session lock is released.
func (e *Engine) Advance(ctx context.Context, in Input) (Result, error) {
	var (
		res       Result
		stepErr   error
		from      state.State
		confirmed state.Session
	)
	e.sessions.Update(in.Key, func(s *state.Session) {
		from = s.State
		next, out, err := transition(*s, in.Text)
		if err != nil {
			stepErr = err
			return
		}
		if out.confirmed {
			confirmed = *s
		}
		res = Result{Kind: out.kind, Text: out.text, State: next.State}
		*s = next
	})
	if stepErr != nil {
		return Result{}, stepErr
	}
	if confirmed.State != "" {
		order, err := e.finalize(in, confirmed)
		if err != nil {
			e.sessions.Update(in.Key, func(s *state.Session) {
				if s.State == state.StateIdle && len(s.Fields) == 0 {
					*s = confirmed
				}
			})
			return Result{}, err
		}
		res = Result{Kind: Finalized, Text: PromptReceived, State: state.StateIdle, Order: &order}
	}
	metrics.SetConversationsActive(e.sessions.Len())

	logger.Debug(ctx, logger.CompBooking, "fsm.advance",
		slog.Int64("chat_id", in.Key.Conversation),
		slog.String("kind", res.Kind.String()),
		slog.String("from", string(from)),
		slog.String("to", string(res.State)),
	)
	if res.Order != nil {
		metrics.IncOrderFinalized()
		logger.Info(logger.WithOrderID(ctx, res.Order.ID), logger.CompBooking, "order.finalized",
			slog.String("route", registry.RouteName(res.Order.Origin, res.Order.Destination)),
			slog.Int("count", res.Order.Passengers),
		)
	}
	return res, nil
}

// InProgress reports whether the conversation is mid-dialog.
func (e *Engine) InProgress(key state.Key) bool {
	return e.sessions.InProgress(key)
}

func (e *Engine) finalize(in Input, s state.Session) (orders.Order, error) {
	o := orderFrom(s)
	o.ID = e.newID()
	o.FrontEnd = in.Key.FrontEnd
	o.Requester = channel.Destination{FrontEnd: in.Key.FrontEnd, Chat: in.Chat}
	stored, err := e.orders.Add(o)
	if err != nil {
		return orders.Order{}, fmt.Errorf("finalize booking: %w", err)
	}
	return stored, nil
}

type outcome struct {
	kind      Kind
	text      string
	confirmed bool
}

// transition computes the next session for one input without side effects.
func transition(s state.Session, text string) (state.Session, outcome, error) {
	if s.State == state.StateIdle || s.State == "" {
		return s, outcome{}, ErrNotStarted
	}

	if s.State == StateConfirmation {
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "yes":
			return state.Session{}, outcome{kind: Finalized, confirmed: true}, nil
		case "no":
			return state.Session{}, outcome{kind: Prompt, text: PromptCancelled}, nil
		default:
			return s, outcome{kind: Rejected, text: PromptConfirmRetry}, nil
		}
	}

	i := stepIndex(s.State)
	if i < 0 {
		return state.Session{}, outcome{}, fmt.Errorf("booking: unknown state %q", s.State)
	}
	cur := steps[i]
	value, ok := cur.parse(text)
	if !ok {
		return s, outcome{kind: Rejected, text: cur.reject}, nil
	}

	next := state.Session{
		State:  StateConfirmation,
		Fields: append(append([]state.Field(nil), s.Fields...), state.Field{Name: cur.field, Value: value}),
	}
	if i+1 < len(steps) {
		next.State = steps[i+1].state
		return next, outcome{kind: Prompt, text: steps[i+1].prompt}, nil
	}
	return next, outcome{kind: Prompt, text: Summary(next)}, nil
}

func orderFrom(s state.Session) orders.Order {
	str := func(name string) string {
		v, _ := s.String(name)
		return v
	}
	n, _ := s.Int(FieldPassengers)
	return orders.Order{
		Origin:      str(FieldOrigin),
		Destination: str(FieldDestination),
		Contact:     str(FieldContact),
		Luggage:     str(FieldLuggage),
		Time:        str(FieldTime),
		Notes:       str(FieldNotes),
		Passengers:  n,
	}
}
