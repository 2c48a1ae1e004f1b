package cli

import (
	"errors"

	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
)

// Process exit codes, one per failure class.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitInvalidLink      = 2
	ExitFetchFailed      = 3
	ExitFileReadFailed   = 4
	ExitInvalidRecording = 5
	ExitPlaybackFailed   = 6
)

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, source.ErrInvalidLink):
		return ExitInvalidLink
	case errors.Is(err, source.ErrFileRead):
		return ExitFileReadFailed
	case errors.Is(err, source.ErrFetch):
		return ExitFetchFailed
	case errors.Is(err, recording.ErrInvalidRecording):
		return ExitInvalidRecording
	case errors.Is(err, player.ErrPlayback):
		return ExitPlaybackFailed
	default:
		return ExitFailure
	}
}
