// Package modfile describes the query surface of a parsed tracker module and
// provides the default inspector for ProTracker-compatible MOD files.
package modfile

import (
	"fmt"
	"time"

	"github.com/starford/modlib/internal/apperr"
)

// Metadata keys understood by Module.Metadata.
const (
	MetaTitle   = "title"
	MetaArtist  = "artist"
	MetaMessage = "message"
	MetaDate    = "date"
	MetaType    = "type"
)

// Module is a parsed tracker module.
//
// Note returns 0 for an empty cell and 1..128 for a playable note; any other
// value (note-off, note-cut, fade) must be ignored by consumers.
type Module interface {
	NumChannels() int
	NumSubsongs() int
	// Orders returns the pattern index of each order position of a subsong,
	// in playback sequence.
	Orders(subsong int) []int
	NumRows(pattern int) int
	Note(pattern, row, channel int) int

	NumPatterns() int
	NumSamples() int
	NumInstruments() int
	SampleNames() []string
	InstrumentNames() []string
	Metadata(key string) string
	Duration() time.Duration
}

// Inspector turns raw file bytes into a Module. Implementations return an
// error wrapping apperr.ErrParse for unrecognised or corrupt input.
type Inspector interface {
	Inspect(data []byte) (Module, error)
}

// InspectorFunc adapts a function to the Inspector interface.
type InspectorFunc func(data []byte) (Module, error)

// Inspect calls f(data).
func (f InspectorFunc) Inspect(data []byte) (Module, error) {
	return f(data)
}

func parseErr(format string, args ...any) error {
	return fmt.Errorf("modfile: %s: %w", fmt.Sprintf(format, args...), apperr.ErrParse)
}
