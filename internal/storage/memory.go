package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
)

// MemoryStorage is an in-memory storage backend backed by a map.
// It uses a Clock for expiration checks, enabling virtual-time testing.
// Thread-safe for concurrent use.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]memItem
	clock clock.Clock
}

type memItem struct {
	value     []byte
	expiresAt time.Time // zero value means no expiration
}

// NewMemoryStorage creates a new in-memory storage using the given clock.
func NewMemoryStorage(c clock.Clock) *MemoryStorage {
	return &MemoryStorage{
		items: make(map[string]memItem),
		clock: c,
	}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok || s.expired(item) {
		return nil, nil
	}
	val := make([]byte, len(item.value))
	copy(val, item.value)
	return val, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, exp time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := memItem{
		value: make([]byte, len(value)),
	}
	copy(item.value, value)

	if exp > 0 {
		item.expiresAt = s.clock.Now().Add(exp)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key, item := range s.items {
		if strings.HasPrefix(key, prefix) && !s.expired(item) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Cleanup removes all expired items. Call periodically for long-running sessions.
func (s *MemoryStorage) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.items {
		if s.expired(item) {
			delete(s.items, key)
		}
	}
}

// Len returns the number of items (including expired ones not yet cleaned up).
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStorage) Close() error { return nil }

func (s *MemoryStorage) expired(item memItem) bool {
	return !item.expiresAt.IsZero() && !s.clock.Now().Before(item.expiresAt)
}
