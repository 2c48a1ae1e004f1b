package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_StalledClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	hub.writeTimeout = 100 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	// Connected but never reads.
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitUntil(t, func() bool { return hub.ClientCount() == 1 })

	// Large enough to fill the socket buffers on both ends.
	big := &message{Op: opFailed, Message: strings.Repeat("x", 64<<20)}
	done := make(chan struct{})
	go func() {
		hub.broadcast(big, false)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a stalled client")
	}
	waitUntil(t, func() bool { return hub.ClientCount() == 0 })
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
