// Package session holds the signed-in account's bearer token.
package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// Persister saves the token outside the process.
type Persister interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Event is published to subscribers whenever the token changes.
type Event struct {
	Token   string
	Cleared bool
}

// Store is the explicit auth state shared by the HTTP client and the CLI.
type Store struct {
	mu        sync.RWMutex
	token     string
	persister Persister
	nextID    int
	subs      map[int]func(Event)
}

func NewStore(persister Persister) *Store {
	return &Store{
		persister: persister,
		subs:      make(map[int]func(Event)),
	}
}

// Restore loads the persisted token, if any.
func (s *Store) Restore() error {
	if s.persister == nil {
		return nil
	}
	token, err := s.persister.Load()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) SignedIn() bool {
	return s.Token() != ""
}

func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}
	s.publish(Event{Token: token})
	return nil
}

// Clear drops the token. Called when the backend rejects it.
func (s *Store) Clear() {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Clear(); err != nil {
			slog.Warn("failed to clear persisted token", "error", err)
		}
	}
	if had {
		s.publish(Event{Cleared: true})
	}
}

// Subscribe registers fn for token changes and returns an unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish(ev Event) {
	s.mu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
