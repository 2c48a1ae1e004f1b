package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/storage"
)

// Entry associates a source with the recording it resolved to.
type Entry struct {
	Mode      Mode                 `json:"mode"`
	Key       string               `json:"key"`            // file id or URL
	Name      string               `json:"name,omitempty"` // original file name
	LoadedAt  time.Time            `json:"loaded_at"`
	Events    int                  `json:"events"`
	Recording *recording.Recording `json:"-"`
}

type envelope struct {
	Mode     Mode                 `json:"mode"`
	Key      string               `json:"key"`
	Name     string               `json:"name,omitempty"`
	LoadedAt time.Time            `json:"loaded_at"`
	Events   *recording.Recording `json:"events"`
}

// Cache stores entries in a storage backend under "<mode>:<key>".
type Cache struct {
	storage storage.Storage
	ttl     time.Duration
}

// NewCache wraps s. A zero ttl keeps entries for the life of the backend.
func NewCache(s storage.Storage, ttl time.Duration) *Cache {
	return &Cache{storage: s, ttl: ttl}
}

func cacheKey(mode Mode, key string) string {
	return string(mode) + ":" + key
}

// Get returns the cached entry, or nil on a miss. The stored recording is
// validated again on the way out.
func (c *Cache) Get(ctx context.Context, mode Mode, key string) (*Entry, error) {
	data, err := c.storage.Get(ctx, cacheKey(mode, key))
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return decodeEntry(data)
}

// Put stores e.
func (c *Cache) Put(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(envelope{
		Mode:     e.Mode,
		Key:      e.Key,
		Name:     e.Name,
		LoadedAt: e.LoadedAt,
		Events:   e.Recording,
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.storage.Set(ctx, cacheKey(e.Mode, e.Key), data, c.ttl); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// List returns every cached entry for mode, oldest first.
func (c *Cache) List(ctx context.Context, mode Mode) ([]*Entry, error) {
	keys, err := c.storage.Keys(ctx, string(mode)+":")
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}

	entries := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		data, err := c.storage.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("reading cache: %w", err)
		}
		if data == nil {
			continue // expired between Keys and Get
		}
		e, err := decodeEntry(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LoadedAt.Equal(entries[j].LoadedAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].LoadedAt.Before(entries[j].LoadedAt)
	})
	return entries, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var raw struct {
		Mode     Mode            `json:"mode"`
		Key      string          `json:"key"`
		Name     string          `json:"name"`
		LoadedAt time.Time       `json:"loaded_at"`
		Events   json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	rec, err := recording.Parse(raw.Events)
	if err != nil {
		return nil, fmt.Errorf("cached entry %s:%s: %w", raw.Mode, raw.Key, err)
	}
	return &Entry{
		Mode:      raw.Mode,
		Key:       raw.Key,
		Name:      raw.Name,
		LoadedAt:  raw.LoadedAt,
		Events:    rec.Len(),
		Recording: rec,
	}, nil
}
