package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/SmitUplenchwar2687/rrview/internal/source"
	"github.com/SmitUplenchwar2687/rrview/internal/storage"
)

// EnvPrefix is prepended to every environment variable ApplyEnv reads.
const EnvPrefix = "RRVIEW_"

// Config is the top-level configuration for an rrview process.
type Config struct {
	Server      ServerConfig  `json:"server" envPrefix:"SERVER_"`
	Loader      LoaderConfig  `json:"loader" envPrefix:"LOADER_"`
	Player      PlayerConfig  `json:"player" envPrefix:"PLAYER_"`
	Storage     StorageConfig `json:"storage" envPrefix:"STORAGE_"`
	DefaultMode source.Mode   `json:"default_mode" env:"DEFAULT_MODE"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr" env:"ADDR"`
}

// LoaderConfig bounds how recordings are fetched and how long they stay cached.
type LoaderConfig struct {
	FetchTimeout time.Duration `json:"fetch_timeout" env:"FETCH_TIMEOUT"`
	MaxBytes     int64         `json:"max_bytes" env:"MAX_BYTES"`
	CacheTTL     time.Duration `json:"cache_ttl" env:"CACHE_TTL"` // 0 keeps entries for the process lifetime
}

// PlayerConfig holds playback widget settings.
type PlayerConfig struct {
	AutoPlay bool `json:"auto_play" env:"AUTO_PLAY"`
}

// StorageConfig selects the backend holding cached source entries.
type StorageConfig struct {
	Backend string             `json:"backend" env:"BACKEND"`
	Redis   StorageRedisConfig `json:"redis" envPrefix:"REDIS_"`
}

// StorageRedisConfig configures the redis backend.
type StorageRedisConfig struct {
	Host         string        `json:"host" env:"HOST"`
	Port         int           `json:"port" env:"PORT"`
	Password     string        `json:"password" env:"PASSWORD"`
	DB           int           `json:"db" env:"DB"`
	Cluster      bool          `json:"cluster" env:"CLUSTER"`
	ClusterNodes []string      `json:"cluster_nodes" env:"CLUSTER_NODES" envSeparator:","`
	PoolSize     int           `json:"pool_size" env:"POOL_SIZE"`
	MaxRetries   int           `json:"max_retries" env:"MAX_RETRIES"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Loader: LoaderConfig{
			FetchTimeout: source.DefaultFetchTimeout,
			MaxBytes:     source.DefaultMaxBytes,
		},
		Player: PlayerConfig{
			AutoPlay: true,
		},
		Storage: StorageConfig{
			Backend: storage.BackendMemory,
			Redis: StorageRedisConfig{
				Host:        "localhost",
				Port:        6379,
				PoolSize:    20,
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
			},
		},
		DefaultMode: source.ModeURL,
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Loader.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Loader.FetchTimeout)
	}
	if c.Loader.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive, got %d", c.Loader.MaxBytes)
	}
	if c.Loader.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.Loader.CacheTTL)
	}
	if _, err := source.ParseMode(string(c.DefaultMode)); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendRedis:
		if c.Storage.Redis.Cluster {
			if len(c.Storage.Redis.ClusterNodes) == 0 {
				return fmt.Errorf("redis cluster mode requires at least one cluster node")
			}
		} else {
			if c.Storage.Redis.Host == "" {
				return fmt.Errorf("redis host must not be empty")
			}
			if c.Storage.Redis.Port <= 0 {
				return fmt.Errorf("redis port must be positive, got %d", c.Storage.Redis.Port)
			}
		}
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", c.Storage.Backend)
	}
	return nil
}

// StorageBackend converts the storage section into the backend constructor's config.
func (c Config) StorageBackend() storage.Config {
	r := c.Storage.Redis
	return storage.Config{
		Backend: c.Storage.Backend,
		Redis: storage.RedisConfig{
			Host:         r.Host,
			Port:         r.Port,
			Password:     r.Password,
			DB:           r.DB,
			Cluster:      r.Cluster,
			ClusterNodes: append([]string(nil), r.ClusterNodes...),
			PoolSize:     r.PoolSize,
			MaxRetries:   r.MaxRetries,
			DialTimeout:  r.DialTimeout,
		},
	}
}

// LoadFile reads a JSON or YAML config file and merges it with defaults.
// Files ending in .yaml or .yml are decoded as YAML, anything else as JSON.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if err := raw.merge(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any RRVIEW_* environment variables that are set,
// e.g. RRVIEW_SERVER_ADDR or RRVIEW_STORAGE_REDIS_HOST.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, nil)
}

func applyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// rawConfig is the file-friendly representation with string durations.
type rawConfig struct {
	Server struct {
		Addr string `json:"addr" yaml:"addr"`
	} `json:"server" yaml:"server"`
	Loader struct {
		FetchTimeout string `json:"fetch_timeout" yaml:"fetch_timeout"`
		MaxBytes     int64  `json:"max_bytes" yaml:"max_bytes"`
		CacheTTL     string `json:"cache_ttl" yaml:"cache_ttl"`
	} `json:"loader" yaml:"loader"`
	Player struct {
		AutoPlay *bool `json:"auto_play" yaml:"auto_play"`
	} `json:"player" yaml:"player"`
	Storage struct {
		Backend string `json:"backend" yaml:"backend"`
		Redis   struct {
			Host         string   `json:"host" yaml:"host"`
			Port         int      `json:"port" yaml:"port"`
			Password     string   `json:"password" yaml:"password"`
			DB           int      `json:"db" yaml:"db"`
			Cluster      bool     `json:"cluster" yaml:"cluster"`
			ClusterNodes []string `json:"cluster_nodes" yaml:"cluster_nodes"`
			PoolSize     int      `json:"pool_size" yaml:"pool_size"`
			MaxRetries   int      `json:"max_retries" yaml:"max_retries"`
			DialTimeout  string   `json:"dial_timeout" yaml:"dial_timeout"`
		} `json:"redis" yaml:"redis"`
	} `json:"storage" yaml:"storage"`
	DefaultMode string `json:"default_mode" yaml:"default_mode"`
}

func (raw rawConfig) merge(cfg *Config) error {
	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Loader.FetchTimeout != "" {
		d, err := time.ParseDuration(raw.Loader.FetchTimeout)
		if err != nil {
			return fmt.Errorf("parsing loader.fetch_timeout: %w", err)
		}
		cfg.Loader.FetchTimeout = d
	}
	if raw.Loader.MaxBytes > 0 {
		cfg.Loader.MaxBytes = raw.Loader.MaxBytes
	}
	if raw.Loader.CacheTTL != "" {
		d, err := time.ParseDuration(raw.Loader.CacheTTL)
		if err != nil {
			return fmt.Errorf("parsing loader.cache_ttl: %w", err)
		}
		cfg.Loader.CacheTTL = d
	}
	if raw.Player.AutoPlay != nil {
		cfg.Player.AutoPlay = *raw.Player.AutoPlay
	}
	if raw.DefaultMode != "" {
		cfg.DefaultMode = source.Mode(raw.DefaultMode)
	}

	s := raw.Storage
	if s.Backend != "" {
		cfg.Storage.Backend = s.Backend
	}
	if s.Redis.Host != "" {
		cfg.Storage.Redis.Host = s.Redis.Host
	}
	if s.Redis.Port > 0 {
		cfg.Storage.Redis.Port = s.Redis.Port
	}
	if s.Redis.Password != "" {
		cfg.Storage.Redis.Password = s.Redis.Password
	}
	if s.Redis.DB > 0 {
		cfg.Storage.Redis.DB = s.Redis.DB
	}
	if s.Redis.Cluster {
		cfg.Storage.Redis.Cluster = true
	}
	if len(s.Redis.ClusterNodes) > 0 {
		cfg.Storage.Redis.ClusterNodes = s.Redis.ClusterNodes
	}
	if s.Redis.PoolSize > 0 {
		cfg.Storage.Redis.PoolSize = s.Redis.PoolSize
	}
	if s.Redis.MaxRetries > 0 {
		cfg.Storage.Redis.MaxRetries = s.Redis.MaxRetries
	}
	if s.Redis.DialTimeout != "" {
		d, err := time.ParseDuration(s.Redis.DialTimeout)
		if err != nil {
			return fmt.Errorf("parsing storage.redis.dial_timeout: %w", err)
		}
		cfg.Storage.Redis.DialTimeout = d
	}
	return nil
}

// WriteExample writes an example config file to the given path, as YAML when
// the path ends in .yaml or .yml.
func WriteExample(path string) error {
	example := `{
  "server": {
    "addr": ":8080"
  },
  "loader": {
    "fetch_timeout": "30s",
    "max_bytes": 268435456,
    "cache_ttl": "0s"
  },
  "player": {
    "auto_play": true
  },
  "storage": {
    "backend": "memory",
    "redis": {
      "host": "localhost",
      "port": 6379
    }
  },
  "default_mode": "url"
}
`
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		example = `server:
  addr: ":8080"
loader:
  fetch_timeout: 30s
  max_bytes: 268435456
  cache_ttl: 0s
player:
  auto_play: true
storage:
  backend: memory
  redis:
    host: localhost
    port: 6379
default_mode: url
`
	}
	return os.WriteFile(path, []byte(example), 0o644)
}
