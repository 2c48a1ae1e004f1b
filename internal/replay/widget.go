// Package replay is a terminal playback widget. It walks a recording's events
// on a clock, honouring the gaps between timestamps scaled by a speed factor,
// and emits a Frame per event.
package replay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

// Frame is one event as it is played.
type Frame struct {
	Instance    string          `json:"instance"`
	Index       int             `json:"index"`
	Event       recording.Event `json:"event"`
	Offset      time.Duration   `json:"offset"` // since the first event
	Description string          `json:"description"`
}

// Summary aggregates one instance's playback.
type Summary struct {
	Events       int           `json:"events"`
	Emitted      int           `json:"emitted"`
	Duration     time.Duration `json:"duration"`      // recording time covered
	WallDuration time.Duration `json:"wall_duration"` // clock time spent playing
	Completed    bool          `json:"completed"`
}

// Widget mounts terminal playback instances.
type Widget struct {
	clock  clock.Clock
	speed  float64 // 1.0 = real-time, 10.0 = 10x, 0 = instant
	filter *Filter
	out    func(Frame)

	seq atomic.Uint64
}

// New creates a widget. out receives frames from the playing goroutine.
func New(clk clock.Clock, speed float64, filter *Filter, out func(Frame)) *Widget {
	if speed < 0 {
		speed = 0
	}
	return &Widget{clock: clk, speed: speed, filter: filter, out: out}
}

// Mount starts an instance. Without AutoPlay it waits for Play.
func (w *Widget) Mount(opts player.Options) (player.Instance, error) {
	if opts.Events == nil {
		return nil, fmt.Errorf("no events to play")
	}
	ctx, cancel := context.WithCancel(context.Background())
	inst := &Instance{
		id:     fmt.Sprintf("replay-%d", w.seq.Add(1)),
		w:      w,
		events: opts.Events.Events(),
		cancel: cancel,
		start:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	if opts.AutoPlay {
		inst.Play()
	}
	go inst.run(ctx)
	return inst, nil
}

// Instance is one running playback.
type Instance struct {
	id     string
	w      *Widget
	events []recording.Event

	cancel    context.CancelFunc
	startOnce sync.Once
	start     chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	summary Summary
}

func (i *Instance) ID() string { return i.id }

// Play starts a paused instance. It is a no-op once playing.
func (i *Instance) Play() {
	i.startOnce.Do(func() { close(i.start) })
}

// Destroy stops playback and waits for the playing goroutine to exit.
func (i *Instance) Destroy() {
	i.cancel()
	<-i.done
}

// Done is closed when playback finishes or is destroyed.
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Summary returns the playback statistics so far.
func (i *Instance) Summary() Summary {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.summary
}

func (i *Instance) run(ctx context.Context) {
	defer close(i.done)

	select {
	case <-ctx.Done():
		return
	case <-i.start:
	}

	clk := i.w.clock
	wallStart := clk.Now()
	i.mu.Lock()
	i.summary.Events = len(i.events)
	i.mu.Unlock()

	if len(i.events) == 0 {
		i.finish(wallStart, 0, true)
		return
	}
	base := i.events[0].Timestamp

	for idx, e := range i.events {
		if idx > 0 {
			gap := time.Duration(e.Timestamp-i.events[idx-1].Timestamp) * time.Millisecond
			if gap > 0 && i.w.speed > 0 {
				scaled := time.Duration(float64(gap) / i.w.speed)
				if err := clock.Sleep(ctx, clk, scaled); err != nil {
					i.finish(wallStart, time.Duration(i.events[idx-1].Timestamp-base)*time.Millisecond, false)
					return
				}
			}
		}
		if ctx.Err() != nil {
			i.finish(wallStart, time.Duration(e.Timestamp-base)*time.Millisecond, false)
			return
		}

		if !i.w.filter.Match(e) {
			continue
		}
		i.mu.Lock()
		i.summary.Emitted++
		i.mu.Unlock()
		if i.w.out != nil {
			i.w.out(Frame{
				Instance:    i.id,
				Index:       idx,
				Event:       e,
				Offset:      time.Duration(e.Timestamp-base) * time.Millisecond,
				Description: Describe(e),
			})
		}
	}

	last := i.events[len(i.events)-1].Timestamp
	i.finish(wallStart, time.Duration(last-base)*time.Millisecond, true)
}

func (i *Instance) finish(wallStart time.Time, played time.Duration, completed bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.summary.Duration = played
	i.summary.WallDuration = i.w.clock.Since(wallStart)
	i.summary.Completed = completed
}
