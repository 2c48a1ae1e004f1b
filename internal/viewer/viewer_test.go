package viewer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/rrview/internal/clock"
	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
	"github.com/SmitUplenchwar2687/rrview/internal/source"
	"github.com/SmitUplenchwar2687/rrview/internal/storage"
	"github.com/SmitUplenchwar2687/rrview/internal/store"
)

const (
	recA = `[{"type":2,"timestamp":100,"data":{}},{"type":3,"timestamp":150,"data":{}}]`
	recB = `[{"type":4,"timestamp":1,"data":{}},{"type":2,"timestamp":2,"data":{}},{"type":3,"timestamp":3,"data":{}}]`
)

type harness struct {
	viewer *Viewer
	store  *store.Store
	widget *countingWidget
	hits   *atomic.Int64
	server *httptest.Server
	gates  map[string]chan struct{}
}

// countingWidget records mounts and destroys in order.
type countingWidget struct {
	mu     sync.Mutex
	events []string
	lens   []int
	n      int
}

type countingInstance struct {
	w  *countingWidget
	id string
}

func (i *countingInstance) ID() string { return i.id }
func (i *countingInstance) Destroy() {
	i.w.mu.Lock()
	defer i.w.mu.Unlock()
	i.w.events = append(i.w.events, "destroy:"+i.id)
}

func (w *countingWidget) Mount(opts player.Options) (player.Instance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.n++
	id := string(rune('0' + w.n))
	w.events = append(w.events, "mount:"+id)
	w.lens = append(w.lens, opts.Events.Len())
	return &countingInstance{w: w, id: id}, nil
}

func (w *countingWidget) log() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.events, " ")
}

// newHarness serves /a and /b with recA and recB. Paths listed in gated
// block until their gate is closed.
func newHarness(t *testing.T, gated ...string) *harness {
	t.Helper()
	h := &harness{gates: make(map[string]chan struct{}), hits: new(atomic.Int64)}
	for _, p := range gated {
		h.gates[p] = make(chan struct{})
	}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		if gate, ok := h.gates[r.URL.Path]; ok {
			<-gate
		}
		switch r.URL.Path {
		case "/a":
			io.WriteString(w, recA)
		case "/b":
			io.WriteString(w, recB)
		case "/object":
			io.WriteString(w, `{"foo":"bar"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(h.server.Close)

	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	loader := source.NewLoader(source.NewCache(storage.NewMemoryStorage(vc), 0), source.Options{Clock: vc})
	h.store = store.New()
	h.widget = &countingWidget{}
	adapter := player.NewAdapter(h.widget, true)
	adapter.Attach(h.store)
	t.Cleanup(adapter.Close)
	h.viewer = New(loader, h.store, source.ModeURL)
	return h
}

func (h *harness) url(path string) string { return h.server.URL + path }

func TestViewer_FileUploadScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.viewer.SetMode(ctx, source.ModeFile)

	out, err := h.viewer.LoadFile(ctx, "rc-1", "rec.json", source.OpenBytes([]byte(recA)))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !out.Shown || out.Stale {
		t.Errorf("Outcome = %+v, want shown", out)
	}
	if got := h.store.Current().Recording.Len(); got != 2 {
		t.Errorf("store events = %d, want 2", got)
	}
	if got := h.widget.log(); got != "mount:1" {
		t.Errorf("widget log = %q, want one mount", got)
	}
}

func TestViewer_InvalidLinkLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	before := h.store.Current()

	_, err := h.viewer.LoadURL(context.Background(), "ftp://example.com/rec.json")
	if !errors.Is(err, source.ErrInvalidLink) {
		t.Fatalf("LoadURL() error = %v, want ErrInvalidLink", err)
	}
	if h.store.Current() != before {
		t.Error("store changed")
	}
	if h.hits.Load() != 0 {
		t.Errorf("requests sent = %d, want 0", h.hits.Load())
	}
}

func TestViewer_SchemaFailureLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.viewer.LoadURL(ctx, h.url("/a")); err != nil {
		t.Fatal(err)
	}
	before := h.store.Current()

	_, err := h.viewer.LoadURL(ctx, h.url("/object"))
	if !errors.Is(err, recording.ErrInvalidRecording) {
		t.Fatalf("LoadURL() error = %v, want ErrInvalidRecording", err)
	}
	if h.store.Current() != before {
		t.Error("store changed after schema failure")
	}
}

func TestViewer_SecondRecordingTearsDownFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.viewer.LoadURL(ctx, h.url("/a"))
	h.viewer.LoadURL(ctx, h.url("/b"))

	if got := h.widget.log(); got != "mount:1 destroy:1 mount:2" {
		t.Errorf("widget log = %q", got)
	}
}

func TestViewer_SameURLTwiceIsCacheHit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.viewer.LoadURL(ctx, h.url("/a"))
	out, err := h.viewer.LoadURL(ctx, h.url("/a"))
	if err != nil {
		t.Fatal(err)
	}
	if h.hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", h.hits.Load())
	}
	if !out.Shown {
		t.Error("re-loading the shown URL should report it as shown")
	}
	if got := h.widget.log(); got != "mount:1" {
		t.Errorf("widget log = %q; re-selecting the shown source must not remount", got)
	}
}

func TestViewer_StaleLoadIsDiscarded(t *testing.T) {
	h := newHarness(t, "/a")
	ctx := context.Background()

	slow := make(chan *Outcome, 1)
	go func() {
		out, err := h.viewer.LoadURL(ctx, h.url("/a"))
		if err != nil {
			t.Errorf("slow LoadURL() error = %v", err)
		}
		slow <- out
	}()
	waitFor(t, func() bool { return h.hits.Load() == 1 })

	fast, err := h.viewer.LoadURL(ctx, h.url("/b"))
	if err != nil {
		t.Fatal(err)
	}
	if !fast.Shown {
		t.Fatal("newer load should be shown")
	}

	close(h.gates["/a"])
	out := <-slow
	if out == nil || !out.Stale || out.Shown {
		t.Fatalf("slow Outcome = %+v, want stale", out)
	}
	if got := h.store.Current().Recording.Len(); got != 3 {
		t.Errorf("store events = %d, want 3 (recording b)", got)
	}
	if sel := h.viewer.State().Selected[source.ModeURL]; sel != h.url("/b") {
		t.Errorf("selected url = %q, want /b", sel)
	}

	// The stale result is still cached for later selection.
	if _, err := h.viewer.Select(ctx, source.ModeURL, h.url("/a")); err != nil {
		t.Errorf("Select(stale url) error = %v", err)
	}
	if h.hits.Load() != 2 {
		t.Errorf("requests = %d, want 2", h.hits.Load())
	}
}

func TestViewer_FailedLoadKeepsEarlierLoadCurrent(t *testing.T) {
	h := newHarness(t, "/a")
	ctx := context.Background()

	slow := make(chan *Outcome, 1)
	go func() {
		out, err := h.viewer.LoadURL(ctx, h.url("/a"))
		if err != nil {
			t.Errorf("slow LoadURL() error = %v", err)
		}
		slow <- out
	}()
	waitFor(t, func() bool { return h.hits.Load() == 1 })

	if _, err := h.viewer.LoadURL(ctx, h.url("/missing")); !errors.Is(err, source.ErrFetch) {
		t.Fatalf("LoadURL(missing) error = %v, want ErrFetch", err)
	}
	if _, err := h.viewer.SelectURL(ctx, h.url("/never-loaded")); !errors.Is(err, source.ErrUnknownSource) {
		t.Fatalf("SelectURL() error = %v, want ErrUnknownSource", err)
	}

	close(h.gates["/a"])
	out := <-slow
	if out == nil || out.Stale || !out.Shown {
		t.Fatalf("slow Outcome = %+v, want shown", out)
	}
	if got := h.store.Current().Recording.Len(); got != 2 {
		t.Errorf("store events = %d, want 2 (recording a)", got)
	}
}

func TestViewer_RefetchAfterExpiryReplacesRecording(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			io.WriteString(w, recA)
			return
		}
		io.WriteString(w, recB)
	}))
	defer srv.Close()

	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	loader := source.NewLoader(source.NewCache(storage.NewMemoryStorage(vc), time.Minute), source.Options{Clock: vc})
	st := store.New()
	widget := &countingWidget{}
	adapter := player.NewAdapter(widget, true)
	adapter.Attach(st)
	defer adapter.Close()
	v := New(loader, st, source.ModeURL)
	ctx := context.Background()

	if _, err := v.LoadURL(ctx, srv.URL+"/r"); err != nil {
		t.Fatal(err)
	}
	vc.Advance(2 * time.Minute)

	out, err := v.LoadURL(ctx, srv.URL+"/r")
	if err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Fatalf("requests = %d, want 2", hits.Load())
	}
	if !out.Shown || out.Entry.Events != 3 {
		t.Errorf("Outcome = %+v, want the re-fetched recording shown", out)
	}
	if got := st.Current().Recording.Len(); got != 3 {
		t.Errorf("store events = %d, want 3 from the re-fetch", got)
	}
	if got := widget.log(); got != "mount:1 destroy:1 mount:2" {
		t.Errorf("widget log = %q", got)
	}
}

func TestViewer_ModeIsolation(t *testing.T) {
	h := newHarness(t, "/a")
	ctx := context.Background()

	done := make(chan *Outcome, 1)
	go func() {
		out, _ := h.viewer.LoadURL(ctx, h.url("/a"))
		done <- out
	}()
	waitFor(t, func() bool { return h.hits.Load() == 1 })

	if err := h.viewer.SetMode(ctx, source.ModeFile); err != nil {
		t.Fatal(err)
	}
	if _, err := h.viewer.LoadFile(ctx, "f1", "b.json", source.OpenBytes([]byte(recB))); err != nil {
		t.Fatal(err)
	}

	close(h.gates["/a"])
	out := <-done
	if out.Stale || out.Shown {
		t.Errorf("url Outcome in file mode = %+v, want selected but not shown", out)
	}
	if got := h.store.Current().Recording.Len(); got != 3 {
		t.Errorf("store events = %d, want the file recording", got)
	}

	// Switching back shows the URL selection without refetching.
	if err := h.viewer.SetMode(ctx, source.ModeURL); err != nil {
		t.Fatal(err)
	}
	if got := h.store.Current().Recording.Len(); got != 2 {
		t.Errorf("store events after switch = %d, want 2", got)
	}
	if err := h.viewer.SetMode(ctx, source.ModeFile); err != nil {
		t.Fatal(err)
	}
	if got := h.store.Current().Recording.Len(); got != 3 {
		t.Errorf("file selection lost after switching modes: events = %d", got)
	}
	if h.hits.Load() != 1 {
		t.Errorf("requests = %d, want 1", h.hits.Load())
	}
}

func TestViewer_SwitchToEmptyMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.viewer.LoadURL(ctx, h.url("/a"))

	h.viewer.SetMode(ctx, source.ModeFile)
	if got := h.store.Current().Recording.Len(); got != 0 {
		t.Errorf("store events = %d, want 0", got)
	}
	if got := h.widget.log(); got != "mount:1 destroy:1" {
		t.Errorf("widget log = %q", got)
	}
}

func TestViewer_SelectUnknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.viewer.Select(context.Background(), source.ModeFile, "nope")
	if !errors.Is(err, source.ErrUnknownSource) {
		t.Errorf("Select() error = %v, want ErrUnknownSource", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
