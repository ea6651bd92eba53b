// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes module library tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/modlib/internal/apperr"
	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/melody"
)

const (
	defaultLimit    = 20
	melodyFormatURI = "modlib://melody-format"
)

// Server wraps the MCP server with library tools.
type Server struct {
	mcp *server.MCPServer
	lib *library.Library
}

// New creates a new MCP server with all library tools registered.
func New(lib *library.Library) *Server {
	s := &Server{lib: lib}

	s.mcp = server.NewMCPServer(
		"Mod Library",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_modules",
		mcp.WithDescription("Search tracker modules by text, melody and acoustic fingerprint. "+
			"Text matches filename, title, artist, sample and instrument names and comments; "+
			"* and ? are wildcards. Read the melody format via get_melody_format first."),
		mcp.WithString("query", mcp.Description("Text filter")),
		mcp.WithString("melody", mcp.Description("Interval phrases, e.g. \"2 2 1|-5\"")),
		mcp.WithString("fingerprint", mcp.Description("Compressed fingerprint; results are ranked by similarity")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchModules)

	s.mcp.AddTool(mcp.NewTool("get_module",
		mcp.WithDescription("Read the full record of one module."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Stored filename as returned by search_modules")),
	), s.getModule)

	s.mcp.AddTool(mcp.NewTool("find_duplicates",
		mcp.WithDescription("List groups of byte-identical modules."),
	), s.findDuplicates)

	s.mcp.AddTool(mcp.NewTool("compile_melody",
		mcp.WithDescription("Compile typed intervals or pasted OpenMPT pattern data into a melody query."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Typed intervals or pasted pattern data")),
	), s.compileMelody)

	s.mcp.AddTool(mcp.NewTool("get_melody_format",
		mcp.WithDescription("Returns the melody query syntax."),
	), s.getMelodyFormat)

	s.mcp.AddTool(mcp.NewTool("add_path",
		mcp.WithDescription("Add or refresh a module file, or every module under a directory."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute file or directory path")),
	), s.addPath)

	s.mcp.AddTool(mcp.NewTool("maintain_library",
		mcp.WithDescription("Re-check every record; modules whose file is gone or unreadable are removed."),
	), s.maintainLibrary)

	s.mcp.AddTool(mcp.NewTool("set_comment",
		mcp.WithDescription("Set the personal comment of a module."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Stored filename")),
		mcp.WithString("comment", mcp.Required(), mcp.Description("Comment text, empty to clear")),
	), s.setComment)

	s.mcp.AddResource(
		mcp.NewResource(melodyFormatURI, "Melody Query Format",
			mcp.WithResourceDescription("Syntax of melody queries."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMelodyFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// searchHit is the compact form of a search result.
type searchHit struct {
	Filename string  `json:"filename"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist,omitempty"`
	Format   string  `json:"format"`
	LengthMs int64   `json:"length_ms"`
	Score    float64 `json:"score,omitempty"`
}

func (s *Server) searchModules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := library.SearchQuery{
		Text:        req.GetString("query", ""),
		Melody:      req.GetString("melody", ""),
		Fingerprint: req.GetString("fingerprint", ""),
		Limit:       req.GetInt("limit", defaultLimit),
	}
	if q.Text != "" {
		q.Fields = index.FieldAll
	}
	hits, err := s.lib.Search(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchHit{
			Filename: h.Filename,
			Title:    h.Title,
			Artist:   h.Artist,
			Format:   h.Format,
			LengthMs: h.Length,
			Score:    h.Score,
		})
	}
	return jsonResult(out)
}

func (s *Server) getModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.lib.Get(ctx, filename)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) findDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := s.lib.FindDuplicates(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(groups) == 0 {
		return mcp.NewToolResultText("no duplicates found"), nil
	}
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, f := range g.Filenames {
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) compileMelody(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q, err := melody.ParseInput(text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(q) == 0 {
		return mcp.NewToolResultError("no intervals in input"), nil
	}
	return mcp.NewToolResultText(q.String()), nil
}

func (s *Server) getMelodyFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MelodyFormat), nil
}

func (s *Server) readMelodyFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      melodyFormatURI,
			MIMEType: "text/markdown",
			Text:     MelodyFormat,
		},
	}, nil
}

func (s *Server) addPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.lib.AddFiles(ctx, []string{path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("seen %d, added %d, updated %d, unchanged %d, failed %d",
		sum.Seen, sum.Added, sum.Updated, sum.Unchanged, sum.Failed)), nil
}

func (s *Server) maintainLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.lib.MaintenanceSweep(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("checked %d, updated %d, removed %d, failed %d",
		sum.Checked, sum.Updated, sum.Removed, sum.Failed)), nil
}

func (s *Server) setComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comment := req.GetString("comment", "")
	if err := s.lib.SetPersonalComment(ctx, filename, comment); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", filename)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
