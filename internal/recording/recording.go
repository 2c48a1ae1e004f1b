package recording

import (
	"encoding/json"
	"time"
)

// MinPlayableEvents is the smallest recording the player can reconstruct a
// session from.
const MinPlayableEvents = 2

// Recording is an ordered sequence of events. A Recording produced by Parse
// keeps the exact bytes it was decoded from so fields this package does not
// model still reach the player.
type Recording struct {
	events []Event
	raw    []byte
}

// New builds a Recording from events constructed in code.
func New(events []Event) *Recording {
	out := make([]Event, len(events))
	copy(out, events)
	return &Recording{events: out}
}

// Empty returns a recording with no events.
func Empty() *Recording {
	return &Recording{events: []Event{}, raw: []byte("[]")}
}

// Events returns a copy of the events.
func (r *Recording) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of events.
func (r *Recording) Len() int {
	if r == nil {
		return 0
	}
	return len(r.events)
}

// Playable reports whether the recording has enough events to replay.
func (r *Recording) Playable() bool {
	return r.Len() >= MinPlayableEvents
}

// Duration is the span between the first and last event timestamps.
func (r *Recording) Duration() time.Duration {
	if r.Len() < 2 {
		return 0
	}
	first := r.events[0].Timestamp
	last := r.events[len(r.events)-1].Timestamp
	return time.Duration(last-first) * time.Millisecond
}

// MarshalJSON returns the original bytes when the recording was parsed.
func (r *Recording) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	if r.events == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.events)
}
