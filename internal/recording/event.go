package recording

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EventType is the numeric discriminator rrweb writes into every event.
type EventType int

// Event types emitted by the rrweb recorder. Values outside this list are
// still valid; they are passed to the player untouched.
const (
	EventDomContentLoaded    EventType = 0
	EventLoad                EventType = 1
	EventFullSnapshot        EventType = 2
	EventIncrementalSnapshot EventType = 3
	EventMeta                EventType = 4
	EventCustom              EventType = 5
	EventPlugin              EventType = 6
)

var eventTypeNames = map[EventType]string{
	EventDomContentLoaded:    "DomContentLoaded",
	EventLoad:                "Load",
	EventFullSnapshot:        "FullSnapshot",
	EventIncrementalSnapshot: "IncrementalSnapshot",
	EventMeta:                "Meta",
	EventCustom:              "Custom",
	EventPlugin:              "Plugin",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseEventType accepts a type name such as "FullSnapshot" (any case) or
// its number.
func ParseEventType(s string) (EventType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return EventType(n), nil
	}
	for t, name := range eventTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// Event is one step of a recorded browser session.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Data      json.RawMessage `json:"data"`      // opaque, shape depends on Type
}
