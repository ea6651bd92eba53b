package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/modlib/internal/fingerprint"
	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/sse"
	"github.com/starford/modlib/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(e sse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e.Type)
}

func (p *recordingPublisher) PublishModuleEvent(kind, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+":"+filename)
}

func (p *recordingPublisher) has(e string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, got := range p.events {
		if got == e {
			return true
		}
	}
	return false
}

type testEnv struct {
	lib    *library.Library
	router http.Handler
	dir    string
	events *recordingPublisher
}

// newTestEnv sets up a library root, SQLite DB and router for testing.
// An empty token disables auth.
func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	db := testutil.TestDB(t)
	dir, fs := testutil.TestRoot(t)
	lib := library.New(db, fs, library.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	events := &recordingPublisher{}
	router := NewRouter(lib, events, authToken != "", authToken, nil)
	return &testEnv{lib: lib, router: router, dir: dir, events: events}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// addSongs writes modules to the root and indexes them through the API.
func (e *testEnv) addSongs(t *testing.T, songs map[string][]int) map[string]string {
	t.Helper()
	keys := make(map[string]string, len(songs))
	for name, notes := range songs {
		data := testutil.MOD{Title: name, Cells: testutil.Melody(0, 0, notes...)}.Bytes()
		p := testutil.WriteFile(t, e.dir, name+".mod", data)
		k, _ := library.Key(p)
		keys[name] = k
	}
	w := e.do(t, http.MethodPost, "/scan", ScanRequest{Path: e.dir})
	if w.Code != http.StatusOK {
		t.Fatalf("scan status = %d, body = %s", w.Code, w.Body.String())
	}
	return keys
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func titles(resp SearchResponse) []string {
	var out []string
	for _, m := range resp.Modules {
		out = append(out, m.Title)
	}
	return out
}

func TestScanAndSearch(t *testing.T) {
	env := newTestEnv(t, "")
	env.addSongs(t, map[string][]int{"alpha": {40, 42, 42}, "beta": {50, 51}})
	if !env.events.has("scan.finished") {
		t.Error("scan did not publish an event")
	}

	w := env.do(t, http.MethodGet, "/modules?q=alp&fields=title", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	resp := decode[SearchResponse](t, w)
	if resp.Total != 1 || resp.Modules[0].Title != "alpha" {
		t.Errorf("search = %+v", resp)
	}

	w = env.do(t, http.MethodGet, "/modules?melody="+url.QueryEscape("2 0"), nil)
	resp = decode[SearchResponse](t, w)
	if got := titles(resp); len(got) != 1 || got[0] != "alpha" {
		t.Errorf("melody search = %v", got)
	}

	w = env.do(t, http.MethodGet, "/modules?sort=title&order=desc", nil)
	resp = decode[SearchResponse](t, w)
	if got := titles(resp); len(got) != 2 || got[0] != "beta" {
		t.Errorf("sorted = %v", got)
	}
}

func TestSearch_TextSearchesAllFieldsByDefault(t *testing.T) {
	env := newTestEnv(t, "")
	env.addSongs(t, map[string][]int{"gamma": {40}})
	resp := decode[SearchResponse](t, env.do(t, http.MethodGet, "/modules?q=gam", nil))
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
}

func TestSearch_BadParameters(t *testing.T) {
	env := newTestEnv(t, "")
	for _, target := range []string{
		"/modules?fields=hash",
		"/modules?sort=note_data",
		"/modules?order=sideways",
		"/modules?limit=-1",
		"/modules?size_min=big",
		"/modules?release_max=yesterday",
	} {
		if w := env.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", target, w.Code)
		}
	}
}

func TestSearch_MalformedFingerprintIgnored(t *testing.T) {
	env := newTestEnv(t, "")
	env.addSongs(t, map[string][]int{"a": {40}, "b": {41}})
	w := env.do(t, http.MethodGet, "/modules?fingerprint=%21%21%21", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := titles(decode[SearchResponse](t, w)); len(got) != 2 || got[0] != "a" {
		t.Errorf("order = %v", got)
	}
}

func TestAllModules_IgnoresFilters(t *testing.T) {
	env := newTestEnv(t, "")
	env.addSongs(t, map[string][]int{"a": {40}, "b": {41}})
	resp := decode[SearchResponse](t, env.do(t, http.MethodGet, "/modules/all?q=zzz&size_max=1", nil))
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestGetModule(t *testing.T) {
	env := newTestEnv(t, "")
	keys := env.addSongs(t, map[string][]int{"solo": {40}})

	w := env.do(t, http.MethodGet, "/module?filename="+url.QueryEscape(keys["solo"]), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	m := decode[ModuleDetail](t, w)
	if m.Title != "solo" || m.Filename != keys["solo"] {
		t.Errorf("module = %+v", m)
	}
	if strings.Contains(w.Body.String(), "note_data") {
		t.Error("note data leaked into JSON")
	}

	if w := env.do(t, http.MethodGet, "/module?filename=/nope.mod", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/module", nil); w.Code != http.StatusBadRequest {
		t.Errorf("no filename = %d, want 400", w.Code)
	}
}

func TestSetComment(t *testing.T) {
	env := newTestEnv(t, "")
	keys := env.addSongs(t, map[string][]int{"c": {40}})

	w := env.do(t, http.MethodPut, "/module/comment", CommentRequest{Filename: keys["c"], Comment: "great bassline"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if m := decode[ModuleDetail](t, w); m.PersonalComment != "great bassline" {
		t.Errorf("comment = %q", m.PersonalComment)
	}
	if !env.events.has("updated:" + keys["c"]) {
		t.Error("comment change not published")
	}

	w = env.do(t, http.MethodPut, "/module/comment", CommentRequest{Filename: "/nope.mod"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestSetFingerprint(t *testing.T) {
	env := newTestEnv(t, "")
	keys := env.addSongs(t, map[string][]int{"f": {40}})

	fp := fingerprint.Encode(1, []uint32{1, 2, 3})
	w := env.do(t, http.MethodPut, "/module/fingerprint", FingerprintRequest{Filename: keys["f"], Fingerprint: fp})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if m := decode[ModuleDetail](t, w); m.Fingerprint != fp {
		t.Errorf("fingerprint = %q", m.Fingerprint)
	}

	w = env.do(t, http.MethodPut, "/module/fingerprint", FingerprintRequest{Filename: keys["f"], Fingerprint: "AQ"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed = %d, want 400", w.Code)
	}
}

func TestDeleteModule(t *testing.T) {
	env := newTestEnv(t, "")
	keys := env.addSongs(t, map[string][]int{"d": {40}})
	target := "/module?filename=" + url.QueryEscape(keys["d"])

	if w := env.do(t, http.MethodDelete, target, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if !env.events.has("removed:" + keys["d"]) {
		t.Error("removal not published")
	}
	if w := env.do(t, http.MethodDelete, target, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestDuplicatesEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	data := testutil.MOD{Title: "twin"}.Bytes()
	testutil.WriteFile(t, env.dir, "x/twin.mod", data)
	testutil.WriteFile(t, env.dir, "y/twin.mod", data)
	if w := env.do(t, http.MethodPost, "/scan", ScanRequest{Paths: []string{env.dir}}); w.Code != http.StatusOK {
		t.Fatalf("scan = %d", w.Code)
	}

	resp := decode[DuplicatesResponse](t, env.do(t, http.MethodGet, "/duplicates", nil))
	if len(resp.Groups) != 1 || len(resp.Groups[0].Filenames) != 2 {
		t.Errorf("groups = %+v", resp.Groups)
	}
}

func TestScan_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(t, http.MethodPost, "/scan", ScanRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty scan = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestMaintenanceEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	keys := env.addSongs(t, map[string][]int{"gone": {40}, "kept": {41}})
	if err := os.Remove(keys["gone"]); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/maintenance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	sum := decode[MaintenanceResponse](t, w)
	if sum.Checked != 2 || sum.Removed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !env.events.has("maintenance.finished") {
		t.Error("maintenance not published")
	}
}

func TestCompileMelody(t *testing.T) {
	env := newTestEnv(t, "secret")

	// Compilation needs no token.
	w := env.do(t, http.MethodPost, "/melody/compile", MelodyRequest{Text: "2 200 | -1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[MelodyResponse](t, w)
	if resp.Typed != "2 -56|-1" {
		t.Errorf("typed = %q", resp.Typed)
	}
	if len(resp.Phrases) != 2 || resp.Phrases[0].Hex != "02c8" || resp.Phrases[1].Intervals[0] != -1 {
		t.Errorf("phrases = %+v", resp.Phrases)
	}

	grid := "ModPlug Tracker MOD\n|C-5\n|E-5\n"
	resp = decode[MelodyResponse](t, env.do(t, http.MethodPost, "/melody/compile", MelodyRequest{Text: grid}))
	if resp.Typed != "4" {
		t.Errorf("grid typed = %q", resp.Typed)
	}

	if w := env.do(t, http.MethodPost, "/melody/compile", MelodyRequest{Text: "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/modules", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed search = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newTestEnv(t, "secret123")
	if w := env.do(t, http.MethodGet, "/modules", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/duplicates", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(t, http.MethodGet, "/modules", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func testRouterWithSSE(t *testing.T, authEnabled bool, token string) (*sse.Broker, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	_, fs := testutil.TestRoot(t)
	lib := library.New(db, fs, library.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	broker := sse.NewBroker(100 * time.Millisecond)
	t.Cleanup(broker.Close)
	return broker, NewRouter(lib, broker, authEnabled, token, broker)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testRouterWithSSE(t, true, "tok")
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed SSE = %d, want 401", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	broker, router := testRouterWithSSE(t, true, "tok")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	broker.PublishModuleEvent(library.EventAdded, "/lib/x.mod")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if w.Code != http.StatusOK {
		t.Fatalf("SSE with query token = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event: module.added") {
		t.Errorf("stream = %q", w.Body.String())
	}
}
