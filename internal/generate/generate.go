// Package generate builds synthetic rrweb recordings: a Meta event, a full
// snapshot of a minimal page, then a stream of mouse, scroll and click
// events timed by a pattern.
package generate

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

const (
	// PatternSteady spaces interactions evenly.
	PatternSteady = "steady"
	// PatternBurst clusters interactions with quiet gaps between them.
	PatternBurst = "burst"
	// PatternRamp makes interactions denser over time.
	PatternRamp = "ramp"
)

// bodyNodeID is the serialized id of <body> in the generated snapshot.
const bodyNodeID = 5

// Options controls how a recording is generated.
type Options struct {
	Count    int // incremental events after the snapshot
	Duration time.Duration
	Pattern  string
	Start    time.Time
	Seed     int64
	Href     string
	Width    int
	Height   int
}

// DefaultOptions returns defaults aligned with the rrview CLI.
func DefaultOptions() Options {
	return Options{
		Count:    100,
		Duration: 30 * time.Second,
		Pattern:  PatternSteady,
		Href:     "https://example.com/",
		Width:    1280,
		Height:   720,
	}
}

// Recording generates a recording from opts.
func Recording(opts Options) (*recording.Recording, error) {
	if opts.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", opts.Count)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	switch opts.Pattern {
	case "":
		opts.Pattern = PatternSteady
	case PatternSteady, PatternBurst, PatternRamp:
	default:
		return nil, fmt.Errorf("unknown pattern %q, must be one of: steady, burst, ramp", opts.Pattern)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().Truncate(time.Second)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Href == "" {
		opts.Href = "https://example.com/"
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	start := opts.Start.UnixMilli()

	events := []recording.Event{
		event(recording.EventMeta, start, map[string]any{
			"href":   opts.Href,
			"width":  opts.Width,
			"height": opts.Height,
		}),
		event(recording.EventFullSnapshot, start, fullSnapshot()),
	}

	var offsets []time.Duration
	switch opts.Pattern {
	case PatternBurst:
		offsets = burstOffsets(rng, opts.Count, opts.Duration)
	case PatternRamp:
		offsets = rampOffsets(opts.Count, opts.Duration)
	default:
		offsets = steadyOffsets(opts.Count, opts.Duration)
	}

	for _, off := range offsets {
		ts := start + off.Milliseconds()
		events = append(events, event(recording.EventIncrementalSnapshot, ts, interaction(rng, opts.Width, opts.Height)))
	}
	return recording.New(events), nil
}

func event(t recording.EventType, ts int64, data any) recording.Event {
	raw, _ := json.Marshal(data)
	return recording.Event{Type: t, Timestamp: ts, Data: raw}
}

func fullSnapshot() map[string]any {
	el := func(id int, tag string, children ...map[string]any) map[string]any {
		if children == nil {
			children = []map[string]any{}
		}
		return map[string]any{"type": 2, "id": id, "tagName": tag, "attributes": map[string]any{}, "childNodes": children}
	}
	return map[string]any{
		"node": map[string]any{
			"type": 0,
			"id":   1,
			"childNodes": []map[string]any{
				{"type": 1, "id": 2, "name": "html", "publicId": "", "systemId": ""},
				el(3, "html",
					el(4, "head"),
					el(bodyNodeID, "body", map[string]any{"type": 3, "id": 6, "textContent": "rrview synthetic session"}),
				),
			},
		},
		"initialOffset": map[string]any{"left": 0, "top": 0},
	}
}

// interaction picks a mouse move, scroll or click against <body>.
func interaction(rng *rand.Rand, width, height int) map[string]any {
	x, y := rng.Intn(width), rng.Intn(height)
	switch n := rng.Intn(10); {
	case n < 6:
		return map[string]any{
			"source":    1,
			"positions": []map[string]any{{"x": x, "y": y, "id": bodyNodeID, "timeOffset": 0}},
		}
	case n < 8:
		return map[string]any{"source": 3, "id": 1, "x": 0, "y": y}
	default:
		return map[string]any{"source": 2, "type": 2, "id": bodyNodeID, "x": x, "y": y}
	}
}

func steadyOffsets(count int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, count)
	if count == 0 {
		return out
	}
	interval := dur / time.Duration(count)
	for i := range out {
		out[i] = time.Duration(i+1) * interval
	}
	return out
}

func burstOffsets(rng *rand.Rand, count int, dur time.Duration) []time.Duration {
	const numBursts = 4
	out := make([]time.Duration, 0, count)
	gap := dur / numBursts
	perBurst := count / numBursts

	for b := 0; b < numBursts; b++ {
		base := time.Duration(b) * gap
		var last time.Duration
		for i := 0; i < perBurst; i++ {
			last += time.Duration(rng.Intn(50)+1) * time.Millisecond
			out = append(out, base+last)
		}
	}
	tail := dur - gap/2
	for len(out) < count {
		tail += time.Millisecond
		out = append(out, tail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func rampOffsets(count int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, count)
	for i := range out {
		frac := float64(i+1) / float64(count)
		out[i] = time.Duration((1 - (1-frac)*(1-frac)) * float64(dur))
	}
	return out
}
