package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
	"github.com/SmitUplenchwar2687/rrview/internal/store"
	"github.com/SmitUplenchwar2687/rrview/internal/viewer"
)

// maxFormMemory bounds how much of an upload is buffered in memory before
// spilling to a temporary file.
const maxFormMemory = 32 << 20

// Options wires a Server to the viewer it exposes.
type Options struct {
	Viewer *viewer.Viewer
	Store  *store.Store
	Player *player.Adapter
	Hub    *Hub
	Clock  clock.Clock
}

// Server is the rrview HTTP server: the viewer page, its JSON API and the
// widget channel.
type Server struct {
	httpServer *http.Server
	viewer     *viewer.Viewer
	store      *store.Store
	player     *player.Adapter
	hub        *Hub
	clock      clock.Clock
	mux        *http.ServeMux
}

// New creates a new rrview server. Client-reported render failures on the
// hub are routed to the player adapter.
func New(addr string, opts Options) *Server {
	s := &Server{
		viewer: opts.Viewer,
		store:  opts.Store,
		player: opts.Player,
		hub:    opts.Hub,
		clock:  opts.Clock,
		mux:    http.NewServeMux(),
	}
	if s.clock == nil {
		s.clock = clock.NewRealClock()
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	s.hub.OnError(s.handleClientError)
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(s.mux, s.clock),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("PUT /api/mode", s.handleMode)
	s.mux.HandleFunc("GET /api/files", s.handleEntries(source.ModeFile))
	s.mux.HandleFunc("POST /api/files", s.handleUpload)
	s.mux.HandleFunc("POST /api/files/{id}/select", s.handleSelectFile)
	s.mux.HandleFunc("GET /api/urls", s.handleEntries(source.ModeURL))
	s.mux.HandleFunc("POST /api/urls", s.handleLoadURL)
	s.mux.HandleFunc("POST /api/urls/select", s.handleSelectURL)
	s.mux.HandleFunc("GET /api/recording", s.handleRecording)
	s.mux.HandleFunc("POST /api/player/reset", s.handleReset)
	s.mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(ViewerHTML))
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	Viewer  viewer.State  `json:"viewer"`
	Player  player.Status `json:"player"`
	Clients int           `json:"clients"`
	Time    string        `json:"time"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Viewer:  s.viewer.State(),
		Player:  s.player.Status(),
		Clients: s.hub.ClientCount(),
		Time:    s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	mode, err := source.ParseMode(body.Mode)
	if err != nil {
		writeErrorKind(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.viewer.SetMode(r.Context(), mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.State())
}

func (s *Server) handleEntries(mode source.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.viewer.Entries(r.Context(), mode)
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []*source.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"entries":  entries,
			"selected": s.viewer.State().Selected[mode],
		})
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "bad_request", "expected a multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorKind(w, http.StatusBadRequest, "bad_request", "missing file field")
		return
	}
	defer file.Close()

	id := uuid.NewString()
	out, err := s.viewer.LoadFile(r.Context(), id, header.Filename, func() (io.ReadCloser, error) {
		return file, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	out, err := s.viewer.SelectFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleLoadURL(w http.ResponseWriter, r *http.Request) {
	var body urlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	out, err := s.viewer.LoadURL(r.Context(), body.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSelectURL(w http.ResponseWriter, r *http.Request) {
	var body urlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorKind(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	out, err := s.viewer.SelectURL(r.Context(), body.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	w.Header().Set("X-Recording-Version", strconv.FormatUint(snap.Version, 10))
	writeJSON(w, http.StatusOK, snap.Recording)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	wasFailed := s.player.Err() != nil
	if wasFailed {
		s.hub.Recovered()
	}
	reset := s.player.Reset()
	if err := s.player.Err(); err != nil {
		// Remounting failed again.
		s.hub.Failed(err.InstanceID, err.Err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reset":  reset,
		"player": s.player.Status(),
	})
}

// handleClientError routes a render failure reported by a page to the
// adapter. Reports for instances that were already replaced are dropped.
func (s *Server) handleClientError(instance, reason string) {
	if reason == "" {
		reason = "player reported an error"
	}
	if s.player.Fail(instance, errors.New(reason)) {
		s.hub.Failed(instance, reason)
	}
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	log.Printf("rrview listening on http://%s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
