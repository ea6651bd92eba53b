package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	db := testutil.TestDB(t)
	dir, fs := testutil.TestRoot(t)
	lib := library.New(db, fs, library.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	return New(lib), dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so the handlers are invoked
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_modules":
		result, err = srv.searchModules(ctx, req)
	case "get_module":
		result, err = srv.getModule(ctx, req)
	case "find_duplicates":
		result, err = srv.findDuplicates(ctx, req)
	case "compile_melody":
		result, err = srv.compileMelody(ctx, req)
	case "get_melody_format":
		result, err = srv.getMelodyFormat(ctx, req)
	case "add_path":
		result, err = srv.addPath(ctx, req)
	case "maintain_library":
		result, err = srv.maintainLibrary(ctx, req)
	case "set_comment":
		result, err = srv.setComment(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAddPathAndSearch(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteFile(t, dir, "tune.mod", testutil.MOD{Title: "tune", Cells: testutil.Melody(0, 0, 40, 42, 44)}.Bytes())
	testutil.WriteFile(t, dir, "other.mod", testutil.MOD{Title: "other", Cells: testutil.Melody(0, 0, 40, 39)}.Bytes())

	r := callTool(t, srv, "add_path", map[string]any{"path": dir})
	if text := resultText(r); text != "seen 2, added 2, updated 0, unchanged 0, failed 0" {
		t.Errorf("add_path = %q", text)
	}

	r = callTool(t, srv, "search_modules", map[string]any{"melody": "2 2"})
	var hits []searchHit
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "tune" {
		t.Errorf("hits = %+v", hits)
	}

	r = callTool(t, srv, "search_modules", map[string]any{"query": "oth", "limit": float64(5)})
	hits = nil
	_ = json.Unmarshal([]byte(resultText(r)), &hits)
	if len(hits) != 1 || hits[0].Title != "other" {
		t.Errorf("text hits = %+v", hits)
	}
}

func TestGetModuleAndComment(t *testing.T) {
	srv, dir := testServer(t)
	p := testutil.WriteFile(t, dir, "a.mod", testutil.MOD{Title: "a"}.Bytes())
	callTool(t, srv, "add_path", map[string]any{"path": p})
	key, _ := library.Key(p)

	r := callTool(t, srv, "set_comment", map[string]any{"filename": key, "comment": "nice"})
	if r.IsError {
		t.Fatalf("set_comment: %s", resultText(r))
	}

	r = callTool(t, srv, "get_module", map[string]any{"filename": key})
	if !strings.Contains(resultText(r), `"personal_comment": "nice"`) {
		t.Errorf("module = %s", resultText(r))
	}
}

func TestGetModuleMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_module", map[string]any{"filename": "/nope.mod"})
	if !r.IsError {
		t.Error("expected error for missing module")
	}
	r = callTool(t, srv, "get_module", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestFindDuplicates(t *testing.T) {
	srv, dir := testServer(t)
	r := callTool(t, srv, "find_duplicates", nil)
	if text := resultText(r); text != "no duplicates found" {
		t.Errorf("empty = %q", text)
	}

	data := testutil.MOD{Title: "same"}.Bytes()
	testutil.WriteFile(t, dir, "one.mod", data)
	testutil.WriteFile(t, dir, "two.mod", data)
	callTool(t, srv, "add_path", map[string]any{"path": dir})

	r = callTool(t, srv, "find_duplicates", nil)
	if lines := strings.Fields(resultText(r)); len(lines) != 2 {
		t.Errorf("duplicates = %q", resultText(r))
	}
}

func TestCompileMelody(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "compile_melody", map[string]any{"text": "2 200 |  | x"})
	if text := resultText(r); text != "2 -56|0" {
		t.Errorf("compiled = %q", text)
	}
	r = callTool(t, srv, "compile_melody", map[string]any{"text": " | "})
	if !r.IsError {
		t.Error("expected error for empty melody")
	}
}

func TestMaintainLibrary(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "maintain_library", nil)
	if text := resultText(r); text != "checked 0, updated 0, removed 0, failed 0" {
		t.Errorf("maintain = %q", text)
	}
}

func TestMelodyFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_melody_format", nil)
	if !strings.HasPrefix(resultText(r), "# Melody Query Format") {
		t.Errorf("format = %q", resultText(r))
	}
}
