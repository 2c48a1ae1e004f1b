package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
)

// Error kinds reported in the "error" field of failed API responses.
const (
	KindInvalidLink      = "invalid_link"
	KindFetchFailed      = "fetch_failed"
	KindFileReadFailed   = "file_read_failed"
	KindInvalidRecording = "invalid_recording"
	KindUnknownSource    = "unknown_source"
	KindPlaybackFailed   = "playback_failed"
	KindInternal         = "internal"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps an error onto an HTTP status and error kind. Source errors
// are checked first because they may wrap recording.ErrMalformed.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, source.ErrInvalidLink):
		return http.StatusBadRequest, KindInvalidLink
	case errors.Is(err, source.ErrFileRead):
		return http.StatusBadRequest, KindFileReadFailed
	case errors.Is(err, source.ErrFetch):
		return http.StatusBadGateway, KindFetchFailed
	case errors.Is(err, source.ErrUnknownSource):
		return http.StatusNotFound, KindUnknownSource
	case errors.Is(err, recording.ErrInvalidRecording):
		return http.StatusUnprocessableEntity, KindInvalidRecording
	case errors.Is(err, player.ErrPlayback):
		return http.StatusConflict, KindPlaybackFailed
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeErrorKind(w, status, kind, err.Error())
}

func writeErrorKind(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
