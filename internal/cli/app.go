package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/config"
	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
	"github.com/SmitUplenchwar2687/rrview/internal/storage"
	"github.com/SmitUplenchwar2687/rrview/internal/store"
	"github.com/SmitUplenchwar2687/rrview/internal/viewer"
)

// appOptions are the flags shared by every command that loads recordings.
type appOptions struct {
	configPath   string
	mode         string
	fetchTimeout time.Duration
	maxBytes     int64
	cacheTTL     time.Duration
	autoPlay     bool
	storage      storageOptions
}

func (o *appOptions) addFlags(cmd *cobra.Command) {
	d := config.Default()
	cmd.Flags().StringVar(&o.configPath, "config", "", "path to a JSON or YAML config file")
	cmd.Flags().StringVar(&o.mode, "mode", string(d.DefaultMode), "initial source mode (file, url)")
	cmd.Flags().DurationVar(&o.fetchTimeout, "fetch-timeout", d.Loader.FetchTimeout, "timeout for fetching a recording URL")
	cmd.Flags().Int64Var(&o.maxBytes, "max-bytes", d.Loader.MaxBytes, "largest recording accepted, in bytes")
	cmd.Flags().DurationVar(&o.cacheTTL, "cache-ttl", d.Loader.CacheTTL, "how long loaded sources stay cached (0 = forever)")
	cmd.Flags().BoolVar(&o.autoPlay, "autoplay", d.Player.AutoPlay, "start playback as soon as a recording is mounted")
	o.storage.addFlags(cmd)
}

// resolve merges defaults, the config file, RRVIEW_* variables and flags,
// in increasing order of precedence.
func (o *appOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	o.applyConfigIfUnset(cmd, &cfg)
	if err := o.storage.normalize(); err != nil {
		return cfg, err
	}

	mode, err := source.ParseMode(o.mode)
	if err != nil {
		return cfg, err
	}
	cfg.DefaultMode = mode
	cfg.Loader.FetchTimeout = o.fetchTimeout
	cfg.Loader.MaxBytes = o.maxBytes
	cfg.Loader.CacheTTL = o.cacheTTL
	cfg.Player.AutoPlay = o.autoPlay
	cfg.Storage = o.storage.toConfig()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *appOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("mode") {
		o.mode = string(cfg.DefaultMode)
	}
	if !cmd.Flags().Changed("fetch-timeout") {
		o.fetchTimeout = cfg.Loader.FetchTimeout
	}
	if !cmd.Flags().Changed("max-bytes") {
		o.maxBytes = cfg.Loader.MaxBytes
	}
	if !cmd.Flags().Changed("cache-ttl") {
		o.cacheTTL = cfg.Loader.CacheTTL
	}
	if !cmd.Flags().Changed("autoplay") {
		o.autoPlay = cfg.Player.AutoPlay
	}
	o.storage.applyConfigIfUnset(cmd, &cfg.Storage)
}

// app is the loader, store, viewer and player adapter wired together.
type app struct {
	storage storage.Storage
	loader  *source.Loader
	store   *store.Store
	viewer  *viewer.Viewer
	player  *player.Adapter
}

func newApp(cfg config.Config, clk clock.Clock, widget player.Widget) (*app, error) {
	backend, err := storage.New(cfg.StorageBackend(), clk)
	if err != nil {
		return nil, fmt.Errorf("creating %s storage: %w", cfg.Storage.Backend, err)
	}

	loader := source.NewLoader(source.NewCache(backend, cfg.Loader.CacheTTL), source.Options{
		FetchTimeout: cfg.Loader.FetchTimeout,
		MaxBytes:     cfg.Loader.MaxBytes,
		Clock:        clk,
	})
	st := store.New()
	a := &app{
		storage: backend,
		loader:  loader,
		store:   st,
		viewer:  viewer.New(loader, st, cfg.DefaultMode),
		player:  player.NewAdapter(widget, cfg.Player.AutoPlay),
	}
	a.player.Attach(st)
	return a, nil
}

// open loads a file path or URL argument and selects it, switching the
// viewer to the argument's mode first.
func (a *app) open(ctx context.Context, arg string) (*viewer.Outcome, error) {
	mode := argMode(arg)
	if err := a.viewer.SetMode(ctx, mode); err != nil {
		return nil, err
	}
	if mode == source.ModeURL {
		return a.viewer.LoadURL(ctx, arg)
	}
	id := arg
	if abs, err := filepath.Abs(arg); err == nil {
		id = abs
	}
	return a.viewer.LoadFile(ctx, id, filepath.Base(arg), source.OpenPath(arg))
}

func (a *app) Close() error {
	a.player.Close()
	return a.storage.Close()
}

// argMode treats anything with a scheme as a link so that unsupported
// schemes are rejected by the link check rather than opened as files.
func argMode(arg string) source.Mode {
	if strings.Contains(arg, "://") {
		return source.ModeURL
	}
	return source.ModeFile
}

// newStandaloneLoader returns a loader with a private in-memory cache, for
// commands that only read recordings.
func newStandaloneLoader(cfg config.Config, clk clock.Clock) *source.Loader {
	return source.NewLoader(source.NewCache(storage.NewMemoryStorage(clk), 0), source.Options{
		FetchTimeout: cfg.Loader.FetchTimeout,
		MaxBytes:     cfg.Loader.MaxBytes,
		Clock:        clk,
	})
}

// loadArg resolves a file path or URL argument through l.
func loadArg(ctx context.Context, l *source.Loader, arg string) (*source.Entry, error) {
	if argMode(arg) == source.ModeURL {
		return l.LoadURL(ctx, arg)
	}
	return l.LoadFile(ctx, arg, filepath.Base(arg), source.OpenPath(arg))
}
