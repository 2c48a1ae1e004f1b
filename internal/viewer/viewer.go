// Package viewer is the single writer of the preview store. It tracks which
// source each mode has selected and applies load results in issue order:
// a load that completes after a newer load for the same mode was started is
// cached but never shown.
package viewer

import (
	"context"
	"log"
	"sync"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
	"github.com/SmitUplenchwar2687/rrview/internal/store"
)

// Outcome reports what happened to a successful load.
type Outcome struct {
	Entry  *source.Entry `json:"entry"`
	Ticket uint64        `json:"ticket"`
	// Stale is set when a newer load for the same mode was issued before
	// this one completed and has not failed. The entry is cached but not
	// selected.
	Stale bool `json:"stale"`
	// Shown is set when the store now holds the entry's recording.
	Shown bool `json:"shown"`
}

// State is a point-in-time view of the viewer.
type State struct {
	Mode     source.Mode            `json:"mode"`
	Selected map[source.Mode]string `json:"selected"`
	Version  uint64                 `json:"version"`
	Events   int                    `json:"events"`
	Inflight int                    `json:"inflight"`
}

// Viewer coordinates the loader and the store.
type Viewer struct {
	loader *source.Loader
	store  *store.Store
	empty  *recording.Recording

	mu       sync.Mutex
	mode     source.Mode
	selected map[source.Mode]string
	shown    *source.Entry
	seq      uint64
	pending  map[source.Mode]map[uint64]struct{}
	newest   map[source.Mode]uint64 // highest applied ticket
}

// New creates a viewer starting in mode.
func New(loader *source.Loader, st *store.Store, mode source.Mode) *Viewer {
	return &Viewer{
		loader:   loader,
		store:    st,
		empty:    recording.Empty(),
		mode:     mode,
		selected: make(map[source.Mode]string),
		pending:  make(map[source.Mode]map[uint64]struct{}),
		newest:   make(map[source.Mode]uint64),
	}
}

// Mode returns the active mode.
func (v *Viewer) Mode() source.Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// SetMode switches the active mode and shows that mode's selection. Neither
// mode's cache or selection is cleared.
func (v *Viewer) SetMode(ctx context.Context, m source.Mode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if m == v.mode {
		return nil
	}
	v.mode = m

	key, ok := v.selected[m]
	if !ok {
		v.shown = nil
		return v.store.Set(v.empty)
	}
	e, err := v.loader.Lookup(ctx, m, key)
	if err != nil {
		// Evicted from the cache since it was selected.
		log.Printf("viewer: selection %s %q unavailable: %v", m, key, err)
		delete(v.selected, m)
		v.shown = nil
		return v.store.Set(v.empty)
	}
	return v.show(e)
}

// LoadFile reads a local recording and selects it.
func (v *Viewer) LoadFile(ctx context.Context, id, name string, open source.Opener) (*Outcome, error) {
	ticket := v.begin(source.ModeFile)
	e, err := v.loader.LoadFile(ctx, id, name, open)
	if err != nil {
		v.abandon(source.ModeFile, ticket)
		return nil, err
	}
	return v.complete(source.ModeFile, ticket, e)
}

// LoadURL fetches a remote recording and selects it. Invalid links are
// rejected before a ticket is issued. A failed load gives its ticket back,
// so it never makes an earlier successful load stale.
func (v *Viewer) LoadURL(ctx context.Context, url string) (*Outcome, error) {
	if err := source.CheckLink(url); err != nil {
		return nil, err
	}
	ticket := v.begin(source.ModeURL)
	e, err := v.loader.LoadURL(ctx, url)
	if err != nil {
		v.abandon(source.ModeURL, ticket)
		return nil, err
	}
	return v.complete(source.ModeURL, ticket, e)
}

// Select re-selects a previously loaded source from the cache.
func (v *Viewer) Select(ctx context.Context, mode source.Mode, key string) (*Outcome, error) {
	ticket := v.begin(mode)
	e, err := v.loader.Lookup(ctx, mode, key)
	if err != nil {
		v.abandon(mode, ticket)
		return nil, err
	}
	return v.complete(mode, ticket, e)
}

// SelectFile re-selects an uploaded file by id.
func (v *Viewer) SelectFile(ctx context.Context, id string) (*Outcome, error) {
	return v.Select(ctx, source.ModeFile, id)
}

// SelectURL re-selects a URL from the history.
func (v *Viewer) SelectURL(ctx context.Context, url string) (*Outcome, error) {
	return v.Select(ctx, source.ModeURL, url)
}

// Entries lists the cached sources of mode.
func (v *Viewer) Entries(ctx context.Context, mode source.Mode) ([]*source.Entry, error) {
	return v.loader.Entries(ctx, mode)
}

// State returns the current viewer state.
func (v *Viewer) State() State {
	v.mu.Lock()
	selected := make(map[source.Mode]string, len(v.selected))
	for m, k := range v.selected {
		selected[m] = k
	}
	mode := v.mode
	v.mu.Unlock()

	snap := v.store.Current()
	return State{
		Mode:     mode,
		Selected: selected,
		Version:  snap.Version,
		Events:   snap.Recording.Len(),
		Inflight: v.loader.Inflight(),
	}
}

func (v *Viewer) begin(mode source.Mode) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	if v.pending[mode] == nil {
		v.pending[mode] = make(map[uint64]struct{})
	}
	v.pending[mode][v.seq] = struct{}{}
	return v.seq
}

func (v *Viewer) abandon(mode source.Mode, ticket uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pending[mode], ticket)
}

// latest returns the highest ticket of mode that is still running or has
// been applied. Must be called with v.mu held.
func (v *Viewer) latest(mode source.Mode) uint64 {
	top := v.newest[mode]
	for t := range v.pending[mode] {
		if t > top {
			top = t
		}
	}
	return top
}

func (v *Viewer) complete(mode source.Mode, ticket uint64, e *source.Entry) (*Outcome, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := &Outcome{Entry: e, Ticket: ticket}
	latest := v.latest(mode)
	delete(v.pending[mode], ticket)
	if ticket != latest {
		log.Printf("viewer: discarding stale %s load %q (ticket %d, latest %d)", mode, e.Key, ticket, latest)
		out.Stale = true
		return out, nil
	}
	v.newest[mode] = ticket

	v.selected[mode] = e.Key
	if mode != v.mode {
		return out, nil
	}
	if err := v.show(e); err != nil {
		return nil, err
	}
	out.Shown = true
	return out, nil
}

// Must be called with v.mu held.
func (v *Viewer) show(e *source.Entry) error {
	if sameLoad(v.shown, e) {
		return nil
	}
	if err := v.store.Set(e.Recording); err != nil {
		return err
	}
	v.shown = e
	return nil
}

// sameLoad reports whether a and b came from the same load of one source.
// Cache reads decode a fresh recording, so pointers cannot be compared; a
// re-fetch after expiry or a write by another process changes LoadedAt.
func sameLoad(a, b *source.Entry) bool {
	return a != nil && b != nil &&
		a.Mode == b.Mode && a.Key == b.Key && a.LoadedAt.Equal(b.LoadedAt)
}
