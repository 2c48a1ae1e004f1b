package replay

import (
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

// Filter selects which events produce frames. Filtered-out events still
// advance playback time.
type Filter struct {
	Types  []recording.EventType // Only emit these types (empty = all)
	After  time.Time             // Only emit events after this time (zero = no limit)
	Before time.Time             // Only emit events before this time (zero = no limit)
}

// Match returns true if the event passes the filter.
func (f *Filter) Match(e recording.Event) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}
	ts := time.UnixMilli(e.Timestamp)
	if !f.After.IsZero() && !ts.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !ts.Before(f.Before) {
		return false
	}
	return true
}

func containsType(types []recording.EventType, t recording.EventType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
