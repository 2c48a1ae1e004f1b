package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
	"github.com/SmitUplenchwar2687/rrview/internal/storage"
	"github.com/SmitUplenchwar2687/rrview/internal/store"
	"github.com/SmitUplenchwar2687/rrview/internal/viewer"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const validRecording = `[{"type":4,"timestamp":1000,"data":{"href":"https://example.com"}},{"type":2,"timestamp":1001,"data":{"node":{}}},{"type":3,"timestamp":1500,"data":{"source":1}}]`

type testEnv struct {
	baseURL string
	adapter *player.Adapter
	hub     *Hub
	store   *store.Store
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	vc := clock.NewVirtualClock(epoch)
	cache := source.NewCache(storage.NewMemoryStorage(vc), 0)
	loader := source.NewLoader(cache, source.Options{Clock: vc, FetchTimeout: 5 * time.Second})
	st := store.New()
	hub := NewHub()
	adapter := player.NewAdapter(hub, true)
	adapter.Attach(st)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), Options{
		Viewer: viewer.New(loader, st, source.ModeFile),
		Store:  st,
		Player: adapter,
		Hub:    hub,
		Clock:  vc,
	})
	go srv.StartOnListener(ln)
	t.Cleanup(func() {
		adapter.Close()
		srv.Shutdown(context.Background())
	})
	return &testEnv{baseURL: "http://" + ln.Addr().String(), adapter: adapter, hub: hub, store: st}
}

func upload(t *testing.T, baseURL, name, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()

	resp, err := http.Post(baseURL+"/api/files", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, status int, kind string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	body := decode[errorResponse](t, resp)
	if body.Error != kind {
		t.Errorf("error kind = %q, want %q (message %q)", body.Error, kind, body.Message)
	}
	if body.Message == "" {
		t.Error("error message should not be empty")
	}
}

func TestServer_Index(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "rrweb-player") {
		t.Error("viewer page should load rrweb-player")
	}
}

func TestServer_Health(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestServer_NotFound(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_UploadSelectsFile(t *testing.T) {
	env := startTestServer(t)

	resp := upload(t, env.baseURL, "session.json", validRecording)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	out := decode[viewer.Outcome](t, resp)
	if !out.Shown || out.Entry.Name != "session.json" || out.Entry.Events != 3 {
		t.Errorf("outcome = %+v, entry %+v", out, out.Entry)
	}

	resp, _ = http.Get(env.baseURL + "/api/recording")
	if v := resp.Header.Get("X-Recording-Version"); v != "1" {
		t.Errorf("recording version = %q, want 1", v)
	}
	events := decode[[]map[string]any](t, resp)
	if len(events) != 3 {
		t.Errorf("recording has %d events, want 3", len(events))
	}

	resp, _ = http.Get(env.baseURL + "/api/files")
	list := decode[struct {
		Entries  []source.Entry `json:"entries"`
		Selected string         `json:"selected"`
	}](t, resp)
	if len(list.Entries) != 1 || list.Selected != out.Entry.Key {
		t.Errorf("file list = %+v", list)
	}

	if st := env.adapter.Status(); st.Phase != player.PhasePlaying {
		t.Errorf("player phase = %q, want playing", st.Phase)
	}

	// Selecting the cached upload again is served from the cache.
	resp = postJSON(t, env.baseURL+"/api/files/"+out.Entry.Key+"/select", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("select status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServer_UploadErrors(t *testing.T) {
	env := startTestServer(t)

	expectError(t, upload(t, env.baseURL, "broken.json", `{"type":`), http.StatusBadRequest, KindFileReadFailed)
	expectError(t, upload(t, env.baseURL, "object.json", `{"events":[]}`), http.StatusUnprocessableEntity, KindInvalidRecording)
	expectError(t, upload(t, env.baseURL, "bad.json", `[{"type":"2","timestamp":1,"data":{}}]`), http.StatusUnprocessableEntity, KindInvalidRecording)

	if v := env.store.Current().Version; v != 0 {
		t.Errorf("store version = %d, rejected uploads must not reach the store", v)
	}
}

func TestServer_SelectUnknownFile(t *testing.T) {
	env := startTestServer(t)
	expectError(t, postJSON(t, env.baseURL+"/api/files/missing/select", nil), http.StatusNotFound, KindUnknownSource)
}

func TestServer_LoadURL(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.json":
			io.WriteString(w, validRecording)
		case "/html":
			io.WriteString(w, "<html></html>")
		case "/object.json":
			io.WriteString(w, `{"type":2}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	env := startTestServer(t)
	req, _ := http.NewRequest(http.MethodPut, env.baseURL+"/api/mode", strings.NewReader(`{"mode":"url"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if st := decode[viewer.State](t, resp); st.Mode != source.ModeURL {
		t.Fatalf("mode = %q, want url", st.Mode)
	}

	expectError(t, postJSON(t, env.baseURL+"/api/urls", urlRequest{URL: "ftp://example.com/x.json"}), http.StatusBadRequest, KindInvalidLink)
	expectError(t, postJSON(t, env.baseURL+"/api/urls", urlRequest{URL: upstream.URL + "/missing"}), http.StatusBadGateway, KindFetchFailed)
	expectError(t, postJSON(t, env.baseURL+"/api/urls", urlRequest{URL: upstream.URL + "/html"}), http.StatusBadGateway, KindFetchFailed)
	expectError(t, postJSON(t, env.baseURL+"/api/urls", urlRequest{URL: upstream.URL + "/object.json"}), http.StatusUnprocessableEntity, KindInvalidRecording)

	resp = postJSON(t, env.baseURL+"/api/urls", urlRequest{URL: upstream.URL + "/ok.json"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decode[viewer.Outcome](t, resp)
	if !out.Shown {
		t.Errorf("outcome = %+v, want shown", out)
	}

	resp = postJSON(t, env.baseURL+"/api/urls/select", urlRequest{URL: upstream.URL + "/ok.json"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("select status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
	expectError(t, postJSON(t, env.baseURL+"/api/urls/select", urlRequest{URL: upstream.URL + "/never"}), http.StatusNotFound, KindUnknownSource)

	resp, _ = http.Get(env.baseURL + "/api/urls")
	list := decode[struct {
		Entries []source.Entry `json:"entries"`
	}](t, resp)
	if len(list.Entries) != 1 {
		t.Errorf("url history has %d entries, want 1", len(list.Entries))
	}
}

func TestServer_BadMode(t *testing.T) {
	env := startTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, env.baseURL+"/api/mode", strings.NewReader(`{"mode":"clipboard"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	expectError(t, resp, http.StatusBadRequest, "bad_request")
}

func TestServer_State(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.baseURL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	st := decode[stateResponse](t, resp)
	if st.Viewer.Mode != source.ModeFile {
		t.Errorf("mode = %q, want file", st.Viewer.Mode)
	}
	if st.Player.Phase != player.PhaseIdle {
		t.Errorf("player phase = %q, want idle", st.Player.Phase)
	}
	if st.Time != epoch.Format(time.RFC3339) {
		t.Errorf("time = %q, want virtual clock time", st.Time)
	}
}

func dialWS(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wsMessage mirrors message with the events left undecoded.
type wsMessage struct {
	Op       string            `json:"op"`
	Instance string            `json:"instance"`
	AutoPlay bool              `json:"autoPlay"`
	Events   []json.RawMessage `json:"events"`
	Message  string            `json:"message"`
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestServer_WidgetChannel(t *testing.T) {
	env := startTestServer(t)

	resp := upload(t, env.baseURL, "session.json", validRecording)
	resp.Body.Close()

	// A page that connects after the mount receives it immediately.
	conn := dialWS(t, env.baseURL)
	mount := readMessage(t, conn)
	if mount.Op != opMount || mount.Instance == "" || !mount.AutoPlay {
		t.Fatalf("first message = %+v, want mount", mount)
	}
	if len(mount.Events) != 3 {
		t.Errorf("mount carried %d events, want 3", len(mount.Events))
	}

	// The page reports a render failure for the mounted instance.
	conn.WriteJSON(map[string]string{"op": "error", "instance": mount.Instance, "message": "bad snapshot"})

	if msg := readMessage(t, conn); msg.Op != opDestroy || msg.Instance != mount.Instance {
		t.Errorf("after error got %+v, want destroy of %s", msg, mount.Instance)
	}
	if msg := readMessage(t, conn); msg.Op != opFailed || msg.Message != "bad snapshot" {
		t.Errorf("after destroy got %+v, want failed", msg)
	}
	if st := env.adapter.Status(); st.Phase != player.PhaseFailed || st.Error != "bad snapshot" {
		t.Errorf("player status = %+v, want failed", st)
	}

	// A late page sees the failure.
	late := dialWS(t, env.baseURL)
	if msg := readMessage(t, late); msg.Op != opFailed {
		t.Errorf("late joiner got %+v, want failed", msg)
	}

	// Manual reset remounts the same recording as a new instance.
	resp = postJSON(t, env.baseURL+"/api/player/reset", nil)
	body := decode[map[string]any](t, resp)
	if body["reset"] != true {
		t.Errorf("reset response = %v", body)
	}
	if msg := readMessage(t, conn); msg.Op != opReset {
		t.Errorf("got %+v, want reset", msg)
	}
	again := readMessage(t, conn)
	if again.Op != opMount || again.Instance == mount.Instance {
		t.Errorf("got %+v, want a fresh mount", again)
	}
	if st := env.adapter.Status(); st.Phase != player.PhasePlaying || st.InstanceID != again.Instance {
		t.Errorf("player status = %+v, want playing %s", st, again.Instance)
	}
}

func TestServer_StaleErrorReportIgnored(t *testing.T) {
	env := startTestServer(t)

	resp := upload(t, env.baseURL, "a.json", validRecording)
	resp.Body.Close()
	conn := dialWS(t, env.baseURL)
	first := readMessage(t, conn)

	resp = upload(t, env.baseURL, "b.json", validRecording)
	resp.Body.Close()
	if msg := readMessage(t, conn); msg.Op != opDestroy {
		t.Fatalf("got %+v, want destroy", msg)
	}
	second := readMessage(t, conn)

	conn.WriteJSON(map[string]string{"op": "error", "instance": first.Instance, "message": "late"})
	// Give the hub's read loop a moment to process the report.
	time.Sleep(50 * time.Millisecond)

	if st := env.adapter.Status(); st.Phase != player.PhasePlaying || st.InstanceID != second.Instance {
		t.Errorf("player status = %+v, stale report must be ignored", st)
	}
}

func TestServer_ResetWhenHealthy(t *testing.T) {
	env := startTestServer(t)

	resp := postJSON(t, env.baseURL+"/api/player/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body := decode[map[string]any](t, resp); body["reset"] != false {
		t.Errorf("reset = %v, want false", body["reset"])
	}
}
