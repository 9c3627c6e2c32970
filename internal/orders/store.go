// Package orders holds the work items produced by finished booking dialogs.
package orders

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/taxibot/internal/channel"
)

var (
	// ErrNotFound is returned for unknown order ids.
	ErrNotFound = errors.New("orders: not found")
	// ErrExists is returned when an order id is reused.
	ErrExists = errors.New("orders: already exists")
)

// Status is the claim status of an order.
type Status string

const (
	// StatusPending means nobody has answered the order yet.
	StatusPending Status = "pending"
	// StatusClaimed is terminal: a driver accepted the order.
	StatusClaimed Status = "claimed"
	// StatusDeclined means at least one driver declined; the order stays claimable.
	StatusDeclined Status = "declined"
)

// Claimable reports whether a driver may still accept the order.
func (s Status) Claimable() bool {
	return s == StatusPending || s == StatusDeclined
}

// Claimant is the driver answering an order.
type Claimant = channel.User

// Order is one finalized booking.
type Order struct {
	ID          string
	Origin      string
	Destination string
	Contact     string
	Luggage     string
	Time        string
	Notes       string
	Passengers  int

	Status     Status
	Claimant   *Claimant
	DeclinedBy []Claimant

	FrontEnd     string
	Requester    channel.Destination
	Announcement *channel.MessageRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) clone() Order {
	c := *o
	if o.Claimant != nil {
		cl := *o.Claimant
		c.Claimant = &cl
	}
	if o.Announcement != nil {
		ref := *o.Announcement
		c.Announcement = &ref
	}
	c.DeclinedBy = append([]Claimant(nil), o.DeclinedBy...)
	return c
}

// Store keeps orders for the lifetime of the process.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*Order
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders: make(map[string]*Order),
		now:    time.Now,
	}
}

// Add stores a new order and stamps its timestamps.
func (s *Store) Add(o Order) (Order, error) {
	if o.ID == "" {
		return Order{}, fmt.Errorf("add order: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return Order{}, fmt.Errorf("add order %s: %w", o.ID, ErrExists)
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	stored := o.clone()
	s.orders[o.ID] = &stored
	return stored.clone(), nil
}

// Get returns a snapshot of an order.
func (s *Store) Get(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

// Update applies fn to the stored order inside the store's critical section.
// Changes are discarded when fn returns an error; the returned snapshot is
// taken before any change in that case.
func (s *Store) Update(id string, fn func(o *Order) error) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("update order %s: %w", id, ErrNotFound)
	}
	draft := o.clone()
	if err := fn(&draft); err != nil {
		return o.clone(), err
	}
	draft.ID = o.ID
	draft.UpdatedAt = s.now()
	*o = draft
	return o.clone(), nil
}

// SetAnnouncement records where the order was announced.
func (s *Store) SetAnnouncement(id string, ref channel.MessageRef) error {
	_, err := s.Update(id, func(o *Order) error {
		o.Announcement = &ref
		return nil
	})
	return err
}

// Claimable lists orders that can still be accepted, oldest first.
func (s *Store) Claimable() []Order {
	return s.list(func(o *Order) bool { return o.Status.Claimable() })
}

// All lists every order, oldest first.
func (s *Store) All() []Order {
	return s.list(func(*Order) bool { return true })
}

// Len returns the number of stored orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) list(keep func(*Order) bool) []Order {
	s.mu.RLock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
