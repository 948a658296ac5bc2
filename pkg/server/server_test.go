package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/snapshot"
	"github.com/vango-dev/vdiff/pkg/treedoc"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, config *ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	if config == nil {
		config = DefaultServerConfig()
	}
	s := New(config)
	s.SetLogger(discardLogger())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		ts.Close()
	})
	return s, ts
}

func wsURL(t *testing.T, baseURL, path string) string {
	t.Helper()
	if !strings.HasPrefix(baseURL, "http") {
		t.Fatalf("unexpected base URL: %q", baseURL)
	}
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func dialWatcher(t *testing.T, ts *httptest.Server, name string) *Watcher {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w, err := Dial(ctx, wsURL(t, ts.URL, "/mounts/"+name+"/ws"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = w.conn.Close() })
	return w
}

// nextFrame reads one frame and fails the test on error.
func nextFrame(t *testing.T, w *Watcher, want protocol.FrameType) *protocol.Frame {
	t.Helper()
	_ = w.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := w.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if f.Type != want {
		t.Fatalf("frame type = %v, want %v", f.Type, want)
	}
	return f
}

func listDoc(keys ...string) string {
	var b strings.Builder
	b.WriteString("tag: ul\nchildren:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "  - tag: li\n    key: %s\n    children: [%s]\n", k, k)
	}
	return b.String()
}

func listHTML(keys ...string) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, k := range keys {
		b.WriteString("<li>" + k + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func doRequest(t *testing.T, method, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func putDoc(t *testing.T, ts *httptest.Server, name, doc string) *RenderResult {
	t.Helper()
	resp, body := doRequest(t, http.MethodPut, ts.URL+"/mounts/"+name, "application/yaml", doc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", resp.StatusCode, body)
	}
	var res RenderResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode render result: %v", err)
	}
	return &res
}

func getHTML(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	resp, body := doRequest(t, http.MethodGet, ts.URL+"/mounts/"+name, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d, body = %s", resp.StatusCode, body)
	}
	return string(body)
}

func decodeError(t *testing.T, body []byte) errorBody {
	t.Helper()
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return eb
}

func TestRenderAndStream(t *testing.T) {
	_, ts := newTestServer(t, nil)

	w := dialWatcher(t, ts, "todo")
	nextFrame(t, w, protocol.FrameSync)
	if got := w.Mirror().Seq(); got != 0 {
		t.Fatalf("seq after sync = %d, want 0", got)
	}

	res := putDoc(t, ts, "todo", listDoc("a", "b"))
	if res.Seq != 1 {
		t.Errorf("Seq = %d, want 1", res.Seq)
	}
	if res.Stats.Creates != 5 {
		t.Errorf("Creates = %d, want 5", res.Stats.Creates)
	}

	nextFrame(t, w, protocol.FramePatches)
	html, err := w.HTML(false)
	if err != nil {
		t.Fatal(err)
	}
	if html != listHTML("a", "b") {
		t.Errorf("watcher HTML = %q, want %q", html, listHTML("a", "b"))
	}
	if got := getHTML(t, ts, "todo"); got != html {
		t.Errorf("server HTML = %q, watcher HTML = %q", got, html)
	}

	res = putDoc(t, ts, "todo", listDoc("b", "a"))
	if res.Stats.Moves != 1 || res.Stats.Creates != 0 || res.Stats.Removes != 0 {
		t.Errorf("reorder stats = %+v, want one move", res.Stats)
	}
	nextFrame(t, w, protocol.FramePatches)
	if got := w.Mirror().Seq(); got != 2 {
		t.Errorf("watcher seq = %d, want 2", got)
	}
	if html, _ := w.HTML(false); html != listHTML("b", "a") {
		t.Errorf("watcher HTML = %q, want %q", html, listHTML("b", "a"))
	}
}

func TestLateWatcherGetsSync(t *testing.T) {
	_, ts := newTestServer(t, nil)

	putDoc(t, ts, "todo", listDoc("a"))
	putDoc(t, ts, "todo", listDoc("a", "b", "c"))

	w := dialWatcher(t, ts, "todo")
	nextFrame(t, w, protocol.FrameSync)
	if got := w.Mirror().Seq(); got != 2 {
		t.Errorf("seq = %d, want 2", got)
	}
	html, _ := w.HTML(false)
	if want := getHTML(t, ts, "todo"); html != want {
		t.Errorf("watcher HTML = %q, want %q", html, want)
	}

	putDoc(t, ts, "todo", listDoc("c", "a"))
	nextFrame(t, w, protocol.FramePatches)
	if html, _ := w.HTML(false); html != listHTML("c", "a") {
		t.Errorf("watcher HTML = %q, want %q", html, listHTML("c", "a"))
	}
}

func TestResync(t *testing.T) {
	_, ts := newTestServer(t, nil)
	putDoc(t, ts, "todo", listDoc("a", "b"))

	w := dialWatcher(t, ts, "todo")
	nextFrame(t, w, protocol.FrameSync)

	if err := w.Resync(); err != nil {
		t.Fatal(err)
	}
	nextFrame(t, w, protocol.FrameSync)
	if w.resyncing {
		t.Error("resyncing still set after sync frame")
	}
	if html, _ := w.HTML(false); html != listHTML("a", "b") {
		t.Errorf("watcher HTML = %q", html)
	}
}

func TestGetFormatYAML(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/mounts/todo?format=yaml", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing mount status = %d, want 404", resp.StatusCode)
	}

	putDoc(t, ts, "todo", listDoc("x", "y"))
	resp, body := doRequest(t, http.MethodGet, ts.URL+"/mounts/todo?format=yaml", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q", ct)
	}
	got, err := treedoc.ParseBytes(treedoc.FormatYAML, body)
	if err != nil {
		t.Fatal(err)
	}
	want := vdom.Ul(vdom.Li(vdom.Key("x"), "x"), vdom.Li(vdom.Key("y"), "y"))
	if !vdom.Equal(got, want) {
		t.Errorf("tree = %+v, want %+v", got, want)
	}
}

func TestDeleteClosesWatchers(t *testing.T) {
	_, ts := newTestServer(t, nil)

	w := dialWatcher(t, ts, "todo")
	nextFrame(t, w, protocol.FrameSync)
	putDoc(t, ts, "todo", listDoc("a"))
	nextFrame(t, w, protocol.FramePatches)

	resp, body := doRequest(t, http.MethodDelete, ts.URL+"/mounts/todo", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, body = %s", resp.StatusCode, body)
	}

	nextFrame(t, w, protocol.FramePatches)
	if html, _ := w.HTML(false); html != "" {
		t.Errorf("watcher HTML after delete = %q, want empty", html)
	}

	_ = w.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := w.Next()
	closed, ok := err.(*ClosedError)
	if !ok {
		t.Fatalf("Next() error = %v, want *ClosedError", err)
	}
	if closed.Reason != protocol.CloseUnmounted {
		t.Errorf("close reason = %v, want %v", closed.Reason, protocol.CloseUnmounted)
	}

	resp, body = doRequest(t, http.MethodDelete, ts.URL+"/mounts/todo", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", resp.StatusCode)
	}
	if eb := decodeError(t, body); eb.Code != "E050" {
		t.Errorf("code = %q, want E050", eb.Code)
	}
}

func TestWatch(t *testing.T) {
	_, ts := newTestServer(t, nil)
	w := dialWatcher(t, ts, "todo")

	frames := make(chan protocol.FrameType, 16)
	done := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		done <- w.Watch(ctx, func(f *protocol.Frame) error {
			frames <- f.Type
			return nil
		})
	}()

	expect := func(want protocol.FrameType) {
		t.Helper()
		select {
		case got := <-frames:
			if got != want {
				t.Fatalf("frame = %v, want %v", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}

	expect(protocol.FrameSync)
	putDoc(t, ts, "todo", listDoc("a"))
	expect(protocol.FramePatches)

	doRequest(t, http.MethodDelete, ts.URL+"/mounts/todo", "", "")
	expect(protocol.FramePatches)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v, want nil after unmount", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestRequestErrors(t *testing.T) {
	config := DefaultServerConfig()
	config.MaxBodyBytes = 256
	_, ts := newTestServer(t, config)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"missing mount", http.MethodGet, "/mounts/nope", "", "", http.StatusNotFound, "E050"},
		{"bad document", http.MethodPut, "/mounts/m", "application/yaml", "tag: [", http.StatusBadRequest, "E010"},
		{"html without root", http.MethodPut, "/mounts/m", "text/html", "   ", http.StatusBadRequest, "E010"},
		{"unsupported type", http.MethodPut, "/mounts/m", "text/plain", "x", http.StatusUnsupportedMediaType, "E011"},
		{"duplicate keys", http.MethodPut, "/mounts/m", "application/yaml", listDoc("a", "a"), http.StatusUnprocessableEntity, "E001"},
		{"too large", http.MethodPut, "/mounts/m", "application/yaml", listDoc(strings.Repeat("k", 300)), http.StatusRequestEntityTooLarge, ""},
		{"unknown format", http.MethodGet, "/mounts/m?format=xml", "", "", http.StatusUnsupportedMediaType, "E011"},
		{"snapshots disabled", http.MethodPost, "/mounts/m/snapshot", "", "", http.StatusServiceUnavailable, ""},
		{"list snapshots disabled", http.MethodGet, "/snapshots", "", "", http.StatusServiceUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, tt.method, ts.URL+tt.path, tt.contentType, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.status, body)
			}
			eb := decodeError(t, body)
			if eb.Code != tt.code {
				t.Errorf("code = %q, want %q", eb.Code, tt.code)
			}
			if eb.Message == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestJSONAndHTMLDocuments(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, body := doRequest(t, http.MethodPut, ts.URL+"/mounts/j", "application/json",
		`{"tag": "p", "attrs": {"class": "x"}, "children": ["hi"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("JSON PUT status = %d, body = %s", resp.StatusCode, body)
	}
	if got := getHTML(t, ts, "j"); got != `<p class="x">hi</p>` {
		t.Errorf("HTML = %q", got)
	}

	resp, body = doRequest(t, http.MethodPut, ts.URL+"/mounts/h", "text/html; charset=utf-8",
		`<ul><li data-key="1">one</li></ul>`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("HTML PUT status = %d, body = %s", resp.StatusCode, body)
	}
	if got := getHTML(t, ts, "h"); got != "<ul><li>one</li></ul>" {
		t.Errorf("HTML = %q", got)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/mounts", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list map[string][]string
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"h", "j"}, list["mounts"]); diff != "" {
		t.Errorf("mounts mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotRestore(t *testing.T) {
	store, err := snapshot.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	config := DefaultServerConfig()
	config.Store = store
	_, ts := newTestServer(t, config)

	putDoc(t, ts, "todo", listDoc("a", "b"))

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/mounts/todo/snapshot?as=saved", "", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("snapshot status = %d, body = %s", resp.StatusCode, body)
	}
	var created map[string]string
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created["snapshot"] != "saved" || created["mount"] != "todo" {
		t.Errorf("snapshot response = %v", created)
	}

	w := dialWatcher(t, ts, "todo")
	nextFrame(t, w, protocol.FrameSync)

	putDoc(t, ts, "todo", listDoc("c"))
	nextFrame(t, w, protocol.FramePatches)

	resp, body = doRequest(t, http.MethodPost, ts.URL+"/mounts/todo/restore?from=saved", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore status = %d, body = %s", resp.StatusCode, body)
	}
	var res RenderResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Seq != 3 {
		t.Errorf("restore Seq = %d, want 3", res.Seq)
	}
	if got := getHTML(t, ts, "todo"); got != listHTML("a", "b") {
		t.Errorf("restored HTML = %q", got)
	}
	nextFrame(t, w, protocol.FramePatches)
	if html, _ := w.HTML(false); html != listHTML("a", "b") {
		t.Errorf("watcher HTML = %q", html)
	}

	// Restoring into a new mount creates it.
	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/mounts/copy/restore?from=saved", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("restore into new mount status = %d", resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/snapshots", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed map[string][]snapshot.Info
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed["snapshots"]) != 1 || listed["snapshots"][0].Name != "saved" {
		t.Errorf("snapshots = %+v", listed["snapshots"])
	}

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"missing snapshot", "/mounts/todo/restore?from=gone", http.StatusNotFound, "E030"},
		{"bad name", "/mounts/todo/snapshot?as=..", http.StatusBadRequest, "E031"},
		{"missing mount", "/mounts/none/snapshot", http.StatusNotFound, "E050"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, ts.URL+tt.path, "", "")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.status, body)
			}
			if eb := decodeError(t, body); eb.Code != tt.code {
				t.Errorf("code = %q, want %q", eb.Code, tt.code)
			}
		})
	}
}

func TestShutdownClosesWatchers(t *testing.T) {
	s, ts := newTestServer(t, nil)

	putDoc(t, ts, "todo", listDoc("a"))
	w := dialWatcher(t, ts, "todo")
	nextFrame(t, w, protocol.FrameSync)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}

	_ = w.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := w.Next()
	closed, ok := err.(*ClosedError)
	if !ok {
		t.Fatalf("Next() error = %v, want *ClosedError", err)
	}
	if closed.Reason != protocol.CloseServerShutdown {
		t.Errorf("close reason = %v, want %v", closed.Reason, protocol.CloseServerShutdown)
	}

	resp, _ := doRequest(t, http.MethodPut, ts.URL+"/mounts/todo", "application/yaml", listDoc("b"))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("render after shutdown status = %d, want 503", resp.StatusCode)
	}
	if got := getHTML(t, ts, "todo"); got != listHTML("a") {
		t.Errorf("HTML after shutdown = %q, want tree kept", got)
	}
}

func TestSlowWatcherIsDropped(t *testing.T) {
	config := DefaultServerConfig()
	m := newLiveMount("slow", config, discardLogger())

	w := &watcher{
		remote: "test",
		config: config,
		logger: discardLogger(),
		send:   make(chan outFrame, 1),
		done:   make(chan struct{}),
	}
	if err := m.attach(w); err != nil {
		t.Fatal(err)
	}

	// The sync frame fills the queue; the render's batch overflows it.
	if _, _, err := m.render(context.Background(), vdom.P("hi")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.done:
	default:
		t.Fatal("slow watcher was not closed")
	}
	if len(m.watchers) != 0 {
		t.Errorf("watchers = %d, want 0", len(m.watchers))
	}

	f, err := protocol.DecodeFrame(w.closeFrame)
	if err != nil {
		t.Fatal(err)
	}
	c, err := protocol.DecodeControl(f.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != protocol.ControlClose || c.Reason != protocol.CloseError {
		t.Errorf("close control = %+v, want Close/Error", c)
	}
	if !w.enqueue([]byte{0}, protocol.FramePatches) {
		t.Error("enqueue after close should be a silent drop")
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	probe := prometheus.NewCounter(prometheus.CounterOpts{Name: "vdiff_probe_total", Help: "probe"})
	reg.MustRegister(probe)
	probe.Inc()

	config := DefaultServerConfig()
	config.MetricsPath = "/metrics"
	config.MetricsGatherer = reg
	_, ts := newTestServer(t, config)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/healthz", "", "")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "vdiff_probe_total 1") {
		t.Errorf("metrics output missing probe:\n%s", body)
	}

	_, ts = newTestServer(t, nil)
	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/metrics", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics without path status = %d, want 404", resp.StatusCode)
	}
}

func TestConfigDefaults(t *testing.T) {
	s := New(&ServerConfig{PingInterval: time.Second, PongTimeout: time.Second})
	cfg := s.Config()
	if cfg.PongTimeout != 2*time.Second {
		t.Errorf("PongTimeout = %v, want 2s", cfg.PongTimeout)
	}
	if cfg.Address != ":7070" || cfg.SendBuffer != 64 || cfg.MaxBodyBytes != 4<<20 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.CheckOrigin == nil || cfg.MetricsGatherer == nil {
		t.Error("CheckOrigin and MetricsGatherer should default")
	}

	if !New(nil).Config().StrictKeys {
		t.Error("nil config should use DefaultServerConfig")
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin", "example.com", "", true},
		{"same host", "example.com", "https://example.com", true},
		{"same host and port", "localhost:7070", "http://localhost:7070", true},
		{"other host", "example.com", "https://evil.com", false},
		{"other port", "localhost:7070", "http://localhost:8080", false},
		{"bad origin", "example.com", "://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/mounts/x/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := SameOriginCheck(r); got != tt.want {
				t.Errorf("SameOriginCheck() = %v, want %v", got, tt.want)
			}
		})
	}
}
