// Package source loads recordings from local files and remote URLs and keeps
// every successfully loaded recording in a cache keyed by where it came from.
package source

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the input channel a recording is loaded through.
type Mode string

const (
	ModeFile Mode = "file"
	ModeURL  Mode = "url"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeFile, ModeURL}

// ParseMode converts a user-supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFile, ModeURL:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q, must be one of: file, url", s)
	}
}

var (
	// ErrInvalidLink is returned for URLs that are not http:// or https://.
	// No request is made.
	ErrInvalidLink = errors.New("link must start with http:// or https://")
	// ErrFetch covers transport errors, non-2xx responses and non-JSON bodies.
	ErrFetch = errors.New("failed to load recording")
	// ErrFileRead is returned when a local file cannot be read as JSON text.
	ErrFileRead = errors.New("failed to read recording file")
	// ErrUnknownSource is returned when selecting a source that was never loaded.
	ErrUnknownSource = errors.New("source has not been loaded")
)

// CheckLink reports whether s may be fetched.
func CheckLink(s string) error {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidLink, s)
}
