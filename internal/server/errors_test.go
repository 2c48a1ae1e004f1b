package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"invalid link", source.ErrInvalidLink, http.StatusBadRequest, KindInvalidLink},
		{"file read", fmt.Errorf("%w: %w", source.ErrFileRead, recording.ErrMalformed), http.StatusBadRequest, KindFileReadFailed},
		{"fetch", fmt.Errorf("%w: 404", source.ErrFetch), http.StatusBadGateway, KindFetchFailed},
		{"cancelled fetch", fmt.Errorf("%w: %w", source.ErrFetch, context.Canceled), http.StatusBadGateway, KindFetchFailed},
		{"unknown source", source.ErrUnknownSource, http.StatusNotFound, KindUnknownSource},
		{"invalid recording", recording.ErrInvalidRecording, http.StatusUnprocessableEntity, KindInvalidRecording},
		{"playback", player.ErrPlayback, http.StatusConflict, KindPlaybackFailed},
		{"other", errors.New("boom"), http.StatusInternalServerError, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := classify(tt.err)
			if status != tt.wantStatus || kind != tt.wantKind {
				t.Errorf("classify() = %d %q, want %d %q", status, kind, tt.wantStatus, tt.wantKind)
			}
		})
	}
}
