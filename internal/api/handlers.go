package api

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/melody"
	"github.com/starford/modlib/internal/models"
	"github.com/starford/modlib/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	lib    Library
	events Publisher
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(lib Library, events Publisher) *Handler {
	if events == nil {
		events = nopPublisher{}
	}
	return &Handler{lib: lib, events: events}
}

// SearchModules handles GET /api/modules.
//
//	@Summary		Search the module library
//	@Tags			modules
//	@Produce		json
//	@Param			q				query		string	false	"Text filter, * and ? wildcards"
//	@Param			fields			query		string	false	"Comma separated text fields"	Enums(filename, title, artist, samples, instruments, comments, personal, all)
//	@Param			size_min		query		int		false	"Minimum file size in bytes"
//	@Param			size_max		query		int		false	"Maximum file size in bytes"
//	@Param			filedate_min	query		string	false	"File date lower bound (YYYY-MM-DD or unix seconds)"
//	@Param			filedate_max	query		string	false	"File date upper bound"
//	@Param			release_min		query		string	false	"Release date lower bound"
//	@Param			release_max		query		string	false	"Release date upper bound"
//	@Param			duration_min	query		int		false	"Minimum length in seconds"
//	@Param			duration_max	query		int		false	"Maximum length in seconds"
//	@Param			melody			query		string	false	"Interval phrases separated by |"
//	@Param			fingerprint		query		string	false	"Compressed fingerprint for similarity ranking"
//	@Param			sort			query		string	false	"Sort field"	Enums(filename, title, filesize, filedate, editdate, length, artist)
//	@Param			order			query		string	false	"Sort order"	Enums(asc, desc)
//	@Param			limit			query		int		false	"Max results"
//	@Success		200				{object}	SearchResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/modules [get]
func (h *Handler) SearchModules(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.search(w, r, q)
}

// AllModules handles GET /api/modules/all.
//
//	@Summary		List every module, ignoring filters
//	@Tags			modules
//	@Produce		json
//	@Param			sort	query		string	false	"Sort field"
//	@Param			order	query		string	false	"Sort order"	Enums(asc, desc)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/modules/all [get]
func (h *Handler) AllModules(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	q.ShowAll = true
	h.search(w, r, q)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, q library.SearchQuery) {
	hits, err := h.lib.Search(r.Context(), q)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if hits == nil {
		hits = []library.Hit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Modules: hits, Total: len(hits)})
}

// GetModule handles GET /api/module?filename=.
//
//	@Summary		Get a module record
//	@Tags			modules
//	@Produce		json
//	@Param			filename	query		string	true	"Stored filename"
//	@Success		200			{object}	ModuleDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/module [get]
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}
	m, err := h.lib.Get(r.Context(), filename)
	if err != nil {
		writeError(w, "get module", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SetComment handles PUT /api/module/comment.
//
//	@Summary		Set the personal comment of a module
//	@Tags			modules
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CommentRequest	true	"Comment"
//	@Success		200		{object}	ModuleDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/module/comment [put]
func (h *Handler) SetComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}
	if err := h.lib.SetPersonalComment(r.Context(), req.Filename, req.Comment); err != nil {
		writeError(w, "set comment", err)
		return
	}
	h.respondModule(w, r, req.Filename)
}

// SetFingerprint handles PUT /api/module/fingerprint.
//
//	@Summary		Attach a compressed fingerprint to a module
//	@Tags			modules
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FingerprintRequest	true	"Fingerprint, empty to clear"
//	@Success		200		{object}	ModuleDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/module/fingerprint [put]
func (h *Handler) SetFingerprint(w http.ResponseWriter, r *http.Request) {
	var req FingerprintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}
	if err := h.lib.SetFingerprint(r.Context(), req.Filename, req.Fingerprint); err != nil {
		writeError(w, "set fingerprint", err)
		return
	}
	h.respondModule(w, r, req.Filename)
}

func (h *Handler) respondModule(w http.ResponseWriter, r *http.Request, filename string) {
	m, err := h.lib.Get(r.Context(), filename)
	if err != nil {
		writeError(w, "get module", err)
		return
	}
	h.events.PublishModuleEvent(library.EventUpdated, filename)
	writeJSON(w, http.StatusOK, m)
}

// DeleteModule handles DELETE /api/module?filename=.
// The file itself is left alone.
//
//	@Summary		Remove a module from the library
//	@Tags			modules
//	@Param			filename	query	string	true	"Stored filename"
//	@Success		204			"Record removed"
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/module [delete]
func (h *Handler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}
	if err := h.lib.Remove(r.Context(), filename); err != nil {
		writeError(w, "delete module", err)
		return
	}
	h.events.PublishModuleEvent(library.EventRemoved, filename)
	w.WriteHeader(http.StatusNoContent)
}

// Duplicates handles GET /api/duplicates.
//
//	@Summary		Find byte-identical modules
//	@Tags			library
//	@Produce		json
//	@Success		200	{object}	DuplicatesResponse
//	@Security		BearerAuth
//	@Router			/duplicates [get]
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.lib.FindDuplicates(r.Context())
	if err != nil {
		writeError(w, "duplicates", err)
		return
	}
	if groups == nil {
		groups = []models.DuplicateGroup{}
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{Groups: groups})
}

// Scan handles POST /api/scan.
//
//	@Summary		Add or update files and directories
//	@Tags			library
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ScanRequest	true	"Paths to scan"
//	@Success		200		{object}	ScanResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	paths := req.Paths
	if req.Path != "" {
		paths = append([]string{req.Path}, paths...)
	}
	if len(paths) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	sum, err := h.lib.AddFiles(r.Context(), paths)
	if err != nil {
		writeError(w, "scan", err)
		return
	}
	h.events.Publish(sse.Event{Type: "scan.finished", Data: sum})
	writeJSON(w, http.StatusOK, sum)
}

// Maintenance handles POST /api/maintenance.
//
//	@Summary		Re-check every record and drop the ones whose file is gone
//	@Tags			library
//	@Produce		json
//	@Success		200	{object}	MaintenanceResponse
//	@Security		BearerAuth
//	@Router			/maintenance [post]
func (h *Handler) Maintenance(w http.ResponseWriter, r *http.Request) {
	sum, err := h.lib.MaintenanceSweep(r.Context())
	if err != nil {
		writeError(w, "maintenance", err)
		return
	}
	h.events.Publish(sse.Event{Type: "maintenance.finished", Data: sum})
	writeJSON(w, http.StatusOK, sum)
}

// CompileMelody handles POST /api/melody/compile.
//
//	@Summary		Compile typed or pasted melody input
//	@Tags			melody
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MelodyRequest	true	"Melody input"
//	@Success		200		{object}	MelodyResponse
//	@Failure		400		{object}	errResponse
//	@Router			/melody/compile [post]
func (h *Handler) CompileMelody(w http.ResponseWriter, r *http.Request) {
	var req MelodyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	q, err := melody.ParseInput(req.Text)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, compileResponse(q))
}

func compileResponse(q melody.Query) MelodyResponse {
	resp := MelodyResponse{Typed: q.String(), Phrases: make([]MelodyPhrase, 0, len(q))}
	for _, p := range q {
		iv := make([]int, len(p))
		for i, b := range p {
			iv[i] = int(int8(b))
		}
		resp.Phrases = append(resp.Phrases, MelodyPhrase{Intervals: iv, Hex: hex.EncodeToString(p)})
	}
	return resp
}
