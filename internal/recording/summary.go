package recording

import "time"

// Summary aggregates what a recording contains.
type Summary struct {
	Events    int            `json:"events"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Duration  time.Duration  `json:"duration"`
	PerType   map[string]int `json:"per_type"`
	Monotonic bool           `json:"monotonic"` // timestamps never go backwards
	Playable  bool           `json:"playable"`
}

// Summarize computes a Summary for r.
func Summarize(r *Recording) Summary {
	s := Summary{
		Events:    r.Len(),
		PerType:   make(map[string]int),
		Monotonic: true,
		Playable:  r.Playable(),
	}
	if s.Events == 0 {
		return s
	}

	for i, e := range r.events {
		s.PerType[e.Type.String()]++
		if i > 0 && e.Timestamp < r.events[i-1].Timestamp {
			s.Monotonic = false
		}
	}
	s.Start = time.UnixMilli(r.events[0].Timestamp).UTC()
	s.End = time.UnixMilli(r.events[len(r.events)-1].Timestamp).UTC()
	s.Duration = r.Duration()
	return s
}
