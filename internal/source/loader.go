package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxBytes     = 256 << 20
)

// Opener opens a local recording for reading. It is only called on a cache
// miss.
type Opener func() (io.ReadCloser, error)

// OpenPath returns an Opener for a file on disk.
func OpenPath(path string) Opener {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// OpenBytes returns an Opener over an in-memory copy of b.
func OpenBytes(b []byte) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
}

// Options configures a Loader.
type Options struct {
	Client       *http.Client
	FetchTimeout time.Duration
	MaxBytes     int64
	Clock        clock.Clock
}

// Loader reads recordings from files and URLs through a Cache.
type Loader struct {
	cache    *Cache
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	clock    clock.Clock

	group    singleflight.Group
	inflight atomic.Int64
}

// NewLoader creates a Loader backed by cache.
func NewLoader(cache *Cache, opts Options) *Loader {
	l := &Loader{
		cache:    cache,
		client:   opts.Client,
		timeout:  opts.FetchTimeout,
		maxBytes: opts.MaxBytes,
		clock:    opts.Clock,
	}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if l.timeout <= 0 {
		l.timeout = DefaultFetchTimeout
	}
	if l.maxBytes <= 0 {
		l.maxBytes = DefaultMaxBytes
	}
	if l.clock == nil {
		l.clock = clock.NewRealClock()
	}
	return l
}

// LoadFile resolves the file identified by id. A previously loaded id is
// served from the cache without calling open.
func (l *Loader) LoadFile(ctx context.Context, id, name string, open Opener) (*Entry, error) {
	if e, err := l.cache.Get(ctx, ModeFile, id); err != nil || e != nil {
		return e, err
	}

	f, err := open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	defer f.Close()

	data, err := l.readAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	rec, err := recording.Parse(data)
	if errors.Is(err, recording.ErrMalformed) {
		return nil, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	if err != nil {
		return nil, err
	}

	return l.store(ctx, &Entry{Mode: ModeFile, Key: id, Name: name}, rec)
}

// LoadURL resolves a remote recording. The link is checked before any I/O, a
// previously fetched URL is served from the cache, and concurrent loads of
// the same URL share a single request.
func (l *Loader) LoadURL(ctx context.Context, url string) (*Entry, error) {
	if err := CheckLink(url); err != nil {
		return nil, err
	}
	if e, err := l.cache.Get(ctx, ModeURL, url); err != nil || e != nil {
		return e, err
	}

	ch := l.group.DoChan(url, func() (any, error) {
		l.inflight.Add(1)
		defer l.inflight.Add(-1)

		// The shared fetch outlives any single caller's context.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.fetch(fetchCtx, url)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (*Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, url, resp.Status)
	}

	data, err := l.readAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	rec, err := recording.Parse(data)
	if errors.Is(err, recording.ErrMalformed) {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if err != nil {
		return nil, err
	}

	return l.store(ctx, &Entry{Mode: ModeURL, Key: url}, rec)
}

func (l *Loader) store(ctx context.Context, e *Entry, rec *recording.Recording) (*Entry, error) {
	e.LoadedAt = l.clock.Now().UTC()
	e.Events = rec.Len()
	e.Recording = rec
	if err := l.cache.Put(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("recording exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}

// Lookup returns the cached entry for a source or ErrUnknownSource.
func (l *Loader) Lookup(ctx context.Context, mode Mode, key string) (*Entry, error) {
	e, err := l.cache.Get(ctx, mode, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownSource, mode, key)
	}
	return e, nil
}

// Entries lists cached sources for mode, oldest first.
func (l *Loader) Entries(ctx context.Context, mode Mode) ([]*Entry, error) {
	return l.cache.List(ctx, mode)
}

// Inflight returns the number of URL fetches currently running.
func (l *Loader) Inflight() int {
	return int(l.inflight.Load())
}
