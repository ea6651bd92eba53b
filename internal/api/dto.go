package api

import (
	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/models"
)

// ModuleDetail is a full module record.
type ModuleDetail = models.Module

// SearchHit is one module in a search response.
type SearchHit = library.Hit

// SearchResponse wraps search results.
type SearchResponse struct {
	Modules []SearchHit `json:"modules" validate:"required"`
	Total   int         `json:"total" example:"42" validate:"required"`
}

// DuplicatesResponse lists groups of byte-identical modules.
type DuplicatesResponse struct {
	Groups []models.DuplicateGroup `json:"groups" validate:"required"`
}

// CommentRequest sets the personal comment of a module.
type CommentRequest struct {
	Filename string `json:"filename" example:"/music/mods/space_debris.mod" validate:"required"`
	Comment  string `json:"comment" example:"play at parties"`
}

// FingerprintRequest attaches a compressed fingerprint to a module.
type FingerprintRequest struct {
	Filename    string `json:"filename" example:"/music/mods/space_debris.mod" validate:"required"`
	Fingerprint string `json:"fingerprint" example:"AQAAAQE"`
}

// ScanRequest names files or directories to add.
type ScanRequest struct {
	Path  string   `json:"path,omitempty" example:"/music/mods"`
	Paths []string `json:"paths,omitempty"`
}

// ScanResponse is the outcome of a scan.
type ScanResponse = library.ScanSummary

// MaintenanceResponse is the outcome of a maintenance sweep.
type MaintenanceResponse = library.SweepSummary

// MelodyRequest carries typed intervals or a pasted tracker grid.
type MelodyRequest struct {
	Text string `json:"text" example:"2 2 1|-5" validate:"required"`
}

// MelodyPhrase is one compiled phrase.
type MelodyPhrase struct {
	Intervals []int  `json:"intervals" validate:"required"`
	Hex       string `json:"hex" example:"0202" validate:"required"`
}

// MelodyResponse is the compiled form of a melody query.
type MelodyResponse struct {
	Typed   string         `json:"typed" example:"2 2 1|-5" validate:"required"`
	Phrases []MelodyPhrase `json:"phrases" validate:"required"`
}
