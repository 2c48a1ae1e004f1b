// Package store holds the recording currently being previewed.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

// Snapshot is the store's state at one version.
type Snapshot struct {
	Version   uint64
	Recording *recording.Recording
}

// Observer is notified of every change to the store. Observers must not call
// Set from OnRecording.
type Observer interface {
	OnRecording(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnRecording(s Snapshot) { f(s) }

// Store holds the single active recording. Every write is validated, and
// observers are notified synchronously in version order.
// Thread-safe for concurrent use.
type Store struct {
	// dispatch serializes writes together with their notifications so
	// observers never see versions out of order.
	dispatch sync.Mutex

	mu        sync.RWMutex
	current   Snapshot
	observers map[int]Observer
	nextID    int
}

// New creates a store holding the empty recording.
func New() *Store {
	return &Store{
		current:   Snapshot{Recording: recording.Empty()},
		observers: make(map[int]Observer),
	}
}

// Current returns the current snapshot.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set makes rec the active recording. Invalid recordings are rejected with an
// error wrapping recording.ErrInvalidRecording and the store is unchanged.
// Setting the recording that is already active is a no-op.
func (s *Store) Set(rec *recording.Recording) error {
	if err := recording.Check(rec); err != nil {
		return fmt.Errorf("rejecting update: %w", err)
	}

	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	if s.current.Recording == rec {
		s.mu.Unlock()
		return nil
	}
	s.current = Snapshot{Version: s.current.Version + 1, Recording: rec}
	snap := s.current
	observers := s.snapshotObservers()
	s.mu.Unlock()

	for _, o := range observers {
		o.OnRecording(snap)
	}
	return nil
}

// SetRaw parses raw JSON and makes it the active recording.
func (s *Store) SetRaw(raw []byte) error {
	rec, err := recording.Parse(raw)
	if err != nil {
		return fmt.Errorf("rejecting update: %w", err)
	}
	return s.Set(rec)
}

// Subscribe registers o and immediately delivers the current snapshot to it.
// The returned func unregisters o.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	snap := s.current
	s.mu.Unlock()

	o.OnRecording(snap)

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Must be called with s.mu held.
func (s *Store) snapshotObservers() []Observer {
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, len(ids))
	for i, id := range ids {
		out[i] = s.observers[id]
	}
	return out
}
