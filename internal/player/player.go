// Package player drives an external playback widget from the store: one
// instance per playable recording, torn down before the next is built, with
// widget failures contained behind a resettable error state.
package player

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/store"
)

// Options is what a widget receives for each instance.
type Options struct {
	Events   *recording.Recording
	AutoPlay bool
}

// Instance is one constructed playback. Destroy stops its timers and releases
// what it rendered; the adapter calls it exactly once.
type Instance interface {
	ID() string
	Destroy()
}

// Widget constructs playback instances against its mount target.
type Widget interface {
	Mount(Options) (Instance, error)
}

// Phase is the adapter's state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhaseFailed  Phase = "failed"
)

// Status describes the adapter for display.
type Status struct {
	Phase      Phase  `json:"phase"`
	InstanceID string `json:"instance,omitempty"`
	Version    uint64 `json:"version"`
	Error      string `json:"error,omitempty"`
}

// ErrPlayback is matched by every *PlaybackError.
var ErrPlayback = errors.New("playback failed")

// PlaybackError reports that the widget could not construct or render a
// schema-valid recording.
type PlaybackError struct {
	Version    uint64
	InstanceID string
	Err        error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed for version %d: %v", e.Version, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

func (e *PlaybackError) Is(target error) bool { return target == ErrPlayback }

// Adapter observes a store and keeps at most one widget instance alive.
// Thread-safe for concurrent use.
type Adapter struct {
	widget   Widget
	autoPlay bool

	mu          sync.Mutex
	latest      store.Snapshot
	instance    Instance
	failure     *PlaybackError
	unsubscribe func()
}

// NewAdapter creates an adapter for w.
func NewAdapter(w Widget, autoPlay bool) *Adapter {
	return &Adapter{widget: w, autoPlay: autoPlay}
}

// Attach subscribes the adapter to s. The current recording is mounted
// immediately.
func (a *Adapter) Attach(s *store.Store) {
	unsubscribe := s.Subscribe(a)
	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()
}

// OnRecording replaces the active instance for a new store snapshot. While
// the adapter is failed the snapshot is only remembered.
func (a *Adapter) OnRecording(snap store.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = snap
	if a.failure != nil {
		return
	}
	a.teardown()
	a.mount()
}

// Fail records an asynchronous render failure reported by the widget for
// instanceID. Reports for instances that are no longer active are ignored.
func (a *Adapter) Fail(instanceID string, cause error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.instance == nil || a.instance.ID() != instanceID {
		return false
	}
	a.teardown()
	a.failure = &PlaybackError{Version: a.latest.Version, InstanceID: instanceID, Err: cause}
	log.Printf("player: %v", a.failure)
	return true
}

// Reset clears a failure and mounts the latest recording again. It returns
// false if the adapter was not failed.
func (a *Adapter) Reset() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failure == nil {
		return false
	}
	a.failure = nil
	a.mount()
	return true
}

// Err returns the current failure, if any.
func (a *Adapter) Err() *PlaybackError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failure
}

// Instance returns the active instance or nil.
func (a *Adapter) Instance() Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

// Status reports the adapter's phase.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Status{Phase: PhaseIdle, Version: a.latest.Version}
	switch {
	case a.failure != nil:
		st.Phase = PhaseFailed
		st.InstanceID = a.failure.InstanceID
		st.Error = a.failure.Err.Error()
	case a.instance != nil:
		st.Phase = PhasePlaying
		st.InstanceID = a.instance.ID()
	}
	return st
}

// Close detaches from the store and destroys the active instance.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.teardown()
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Must be called with a.mu held.
func (a *Adapter) mount() {
	rec := a.latest.Recording
	if !rec.Playable() {
		return
	}
	inst, err := a.safeMount(Options{Events: rec, AutoPlay: a.autoPlay})
	if err != nil {
		a.failure = &PlaybackError{Version: a.latest.Version, Err: err}
		log.Printf("player: %v", a.failure)
		return
	}
	a.instance = inst
}

func (a *Adapter) safeMount(opts Options) (inst Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst, err = nil, fmt.Errorf("widget panicked: %v", r)
		}
	}()
	inst, err = a.widget.Mount(opts)
	if err == nil && inst == nil {
		err = errors.New("widget returned no instance")
	}
	return inst, err
}

// Must be called with a.mu held.
func (a *Adapter) teardown() {
	if a.instance == nil {
		return
	}
	inst := a.instance
	a.instance = nil

	defer func() {
		if r := recover(); r != nil {
			log.Printf("player: destroying instance %s panicked: %v", inst.ID(), r)
		}
	}()
	inst.Destroy()
}
