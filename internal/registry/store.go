// Package registry keeps the registered front-end credentials and the named
// routes that select a broadcast sub-channel for orders.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ch "github.com/m3rciful/taxibot/internal/channel"
)

var (
	// ErrNotFound is returned when a front-end or route does not exist.
	ErrNotFound = errors.New("registry: not found")
	// ErrExists is returned when registering a duplicate front-end or route.
	ErrExists = errors.New("registry: already exists")
	// ErrPrivileged is returned when an operation would add or remove the main front-end.
	ErrPrivileged = errors.New("registry: privileged front-end")
	// ErrInvalid is returned for empty credentials or names.
	ErrInvalid = errors.New("registry: invalid value")
)

// FrontEnd is one registered bot connection.
type FrontEnd struct {
	Token      string
	Name       string
	Privileged bool
	Active     bool
	AddedAt    time.Time
}

// Route maps a route name to an optional broadcast sub-channel.
type Route struct {
	Name    string
	Channel string
}

// Bound reports whether the route has a destination sub-channel.
func (r Route) Bound() bool {
	return r.Channel != ""
}

// RouteName derives the canonical route name for an origin/destination pair.
func RouteName(origin, destination string) string {
	return strings.TrimSpace(origin) + "→" + strings.TrimSpace(destination)
}

// Redact shortens a credential for display.
func Redact(token string) string {
	if len(token) <= 5 {
		return "***"
	}
	return token[:5] + "..."
}

// Store is the in-memory registry shared by all poll loops.
type Store struct {
	mu        sync.RWMutex
	frontEnds map[string]*FrontEnd
	routes    map[string]*Route
	mainToken string
	now       func() time.Time
}

// New creates a registry holding the privileged front-end.
func New(mainToken, mainName string) *Store {
	s := &Store{
		frontEnds: make(map[string]*FrontEnd),
		routes:    make(map[string]*Route),
		mainToken: mainToken,
		now:       time.Now,
	}
	s.frontEnds[mainToken] = &FrontEnd{
		Token:      mainToken,
		Name:       mainName,
		Privileged: true,
		Active:     true,
		AddedAt:    s.now(),
	}
	return s
}

// Main returns the privileged front-end.
func (s *Store) Main() FrontEnd {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.frontEnds[s.mainToken]
}

// AddFrontEnd registers a new active customer front-end.
func (s *Store) AddFrontEnd(token, name string) (FrontEnd, error) {
	token = strings.TrimSpace(token)
	name = strings.TrimSpace(name)
	if token == "" || name == "" {
		return FrontEnd{}, fmt.Errorf("add front-end: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.mainToken {
		return FrontEnd{}, fmt.Errorf("add front-end: %w", ErrPrivileged)
	}
	if _, ok := s.frontEnds[token]; ok {
		return FrontEnd{}, fmt.Errorf("add front-end %q: %w", name, ErrExists)
	}
	fe := &FrontEnd{Token: token, Name: name, Active: true, AddedAt: s.now()}
	s.frontEnds[token] = fe
	return *fe, nil
}

// FrontEnd looks up a front-end by credential.
func (s *Store) FrontEnd(token string) (FrontEnd, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fe, ok := s.frontEnds[token]
	if !ok {
		return FrontEnd{}, false
	}
	return *fe, true
}

// FrontEnds lists every front-end, main first, then by name.
func (s *Store) FrontEnds() []FrontEnd {
	s.mu.RLock()
	out := make([]FrontEnd, 0, len(s.frontEnds))
	for _, fe := range s.frontEnds {
		out = append(out, *fe)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Privileged != out[j].Privileged {
			return out[i].Privileged
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// RemoveFrontEnd deregisters a customer front-end.
func (s *Store) RemoveFrontEnd(token string) (FrontEnd, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fe, ok := s.frontEnds[token]
	if !ok {
		return FrontEnd{}, fmt.Errorf("remove front-end: %w", ErrNotFound)
	}
	if fe.Privileged {
		return FrontEnd{}, fmt.Errorf("remove front-end: %w", ErrPrivileged)
	}
	delete(s.frontEnds, token)
	return *fe, nil
}

// SetActive toggles the active flag of a front-end.
func (s *Store) SetActive(token string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fe, ok := s.frontEnds[token]
	if !ok {
		return fmt.Errorf("set active: %w", ErrNotFound)
	}
	fe.Active = active
	return nil
}

// AddRoute registers an unbound route.
func (s *Store) AddRoute(name string) (Route, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Route{}, fmt.Errorf("add route: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[name]; ok {
		return Route{}, fmt.Errorf("add route %q: %w", name, ErrExists)
	}
	r := &Route{Name: name}
	s.routes[name] = r
	return *r, nil
}

// LinkRoute binds a route to a sub-channel, creating the route when missing.
// The boolean reports whether the route was created.
func (s *Store) LinkRoute(name, channel string) (Route, bool, error) {
	name = strings.TrimSpace(name)
	channel = strings.TrimSpace(channel)
	if name == "" || channel == "" {
		return Route{}, false, fmt.Errorf("link route: %w", ErrInvalid)
	}
	if _, err := ch.ParseTopic(channel); err != nil {
		return Route{}, false, fmt.Errorf("link route: %w: %w", ErrInvalid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[name]
	if !ok {
		r = &Route{Name: name}
		s.routes[name] = r
	}
	r.Channel = channel
	return *r, !ok, nil
}

// Route looks up a route by name.
func (s *Store) Route(name string) (Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[strings.TrimSpace(name)]
	if !ok {
		return Route{}, false
	}
	return *r, true
}

// Routes lists routes sorted by name.
func (s *Store) Routes() []Route {
	s.mu.RLock()
	out := make([]Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, *r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RemoveRoute deletes a route.
func (s *Store) RemoveRoute(name string) error {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[name]; !ok {
		return fmt.Errorf("remove route %q: %w", name, ErrNotFound)
	}
	delete(s.routes, name)
	return nil
}
