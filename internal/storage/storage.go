package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
)

const (
	// BackendMemory keeps entries in process memory.
	BackendMemory = "memory"
	// BackendRedis shares entries between rrview processes through Redis.
	BackendRedis = "redis"
)

// Storage abstracts the backend holding cached source entries.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get retrieves the stored value for a key.
	// Returns nil, nil if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value for a key with an expiration duration.
	// If exp is 0, the key does not expire.
	Set(ctx context.Context, key string, value []byte, exp time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Keys lists live keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	Redis   RedisConfig
}

// New constructs the backend named by cfg.Backend.
func New(cfg Config, clk clock.Clock) (Storage, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStorage(clk), nil
	case BackendRedis:
		return NewRedisStorage(&cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", cfg.Backend)
	}
}
