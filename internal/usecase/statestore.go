package usecase

import (
	"sync"

	"murmur/internal/domain"
)

// StateStore is the single source of truth for one recorder lifecycle.
// Exactly one owner mutates it; anyone may read or subscribe.
type StateStore struct {
	mu        sync.Mutex
	state     domain.RecorderState
	observers []func(domain.RecorderState)
}

func NewStateStore() *StateStore {
	return &StateStore{state: domain.StateIdle}
}

// Get returns the current lifecycle state.
func (s *StateStore) Get() domain.RecorderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers an observer invoked on every transition, in
// subscription order, outside the store lock.
func (s *StateStore) Subscribe(fn func(domain.RecorderState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// set transitions the state and notifies observers. Package-private: only
// the owning session manager may call it.
func (s *StateStore) set(state domain.RecorderState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	observers := make([]func(domain.RecorderState), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
