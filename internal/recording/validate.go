package recording

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformed is returned when the input is not JSON at all.
	ErrMalformed = errors.New("recording is not valid JSON")
	// ErrInvalidRecording is returned when the input is JSON but not an
	// array of events.
	ErrInvalidRecording = errors.New("invalid rrweb recording")
)

// Validate reports whether v, a value produced by encoding/json decoding into
// an interface, is shaped like a recording: an array whose elements all have
// a numeric type, a numeric timestamp and an object data payload.
func Validate(v any) bool {
	events, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range events {
		if !validEvent(e) {
			return false
		}
	}
	return true
}

func validEvent(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := obj["type"].(float64); !ok {
		return false
	}
	if _, ok := obj["timestamp"].(float64); !ok {
		return false
	}
	_, ok = obj["data"].(map[string]any)
	return ok
}

// Parse validates raw JSON and decodes it into a Recording. Errors wrap
// ErrMalformed or ErrInvalidRecording.
func Parse(raw []byte) (*Recording, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	owned := make([]byte, len(raw))
	copy(owned, raw)

	doc := gjson.ParseBytes(owned)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: top level is %s, want array", ErrInvalidRecording, describe(doc))
	}

	var (
		events []Event
		bad    error
	)
	index := 0
	doc.ForEach(func(_, value gjson.Result) bool {
		if err := checkEvent(value); err != nil {
			bad = fmt.Errorf("%w: event %d: %v", ErrInvalidRecording, index, err)
			return false
		}
		events = append(events, Event{
			Type:      EventType(value.Get("type").Int()),
			Timestamp: value.Get("timestamp").Int(),
			Data:      json.RawMessage(value.Get("data").Raw),
		})
		index++
		return true
	})
	if bad != nil {
		return nil, bad
	}
	if events == nil {
		events = []Event{}
	}
	return &Recording{events: events, raw: owned}, nil
}

// Check re-validates a decoded recording. It is the gate every producer passes
// through before a recording becomes current.
func Check(r *Recording) error {
	if r == nil {
		return fmt.Errorf("%w: nil recording", ErrInvalidRecording)
	}
	for i, e := range r.events {
		if !gjson.ValidBytes(e.Data) || !gjson.ParseBytes(e.Data).IsObject() {
			return fmt.Errorf("%w: event %d: data must be an object", ErrInvalidRecording, i)
		}
	}
	return nil
}

func checkEvent(v gjson.Result) error {
	if !v.IsObject() {
		return fmt.Errorf("is %s, want object", describe(v))
	}
	if t := v.Get("type"); t.Type != gjson.Number {
		return fmt.Errorf("type is %s, want number", describe(t))
	}
	if ts := v.Get("timestamp"); ts.Type != gjson.Number {
		return fmt.Errorf("timestamp is %s, want number", describe(ts))
	}
	if d := v.Get("data"); !d.IsObject() {
		return fmt.Errorf("data is %s, want object", describe(d))
	}
	return nil
}

func describe(v gjson.Result) string {
	switch {
	case !v.Exists():
		return "missing"
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	}
	switch v.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "bool"
	case gjson.Number:
		return "number"
	default:
		return "string"
	}
}
