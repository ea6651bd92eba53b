// Package library keeps the module index in step with files on disk and
// answers searches over it.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/modlib/internal/apperr"
	"github.com/starford/modlib/internal/checksum"
	"github.com/starford/modlib/internal/fingerprint"
	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/modfile"
	"github.com/starford/modlib/internal/models"
	"github.com/starford/modlib/internal/notedata"
	"github.com/starford/modlib/internal/storage"
)

// Outcome is the result of reconciling one file with the index.
type Outcome int

const (
	Added Outcome = iota
	Updated
	NoChange
	IOError    // not added: file unreadable
	ParseError // not added: not a recognised module
	StoreError // the index write failed
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case NoChange:
		return "unchanged"
	case IOError:
		return "io error"
	case ParseError:
		return "parse error"
	case StoreError:
		return "store error"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Library is the module index bound to its collaborators.
type Library struct {
	db        index.Store
	fs        storage.Provider
	inspector modfile.Inspector
	cmp       fingerprint.Comparator
	logger    *slog.Logger

	// mu serialises lookup-then-write sequences.
	mu sync.Mutex
}

// Option configures a Library.
type Option func(*Library)

// WithInspector replaces the default ProTracker inspector.
func WithInspector(i modfile.Inspector) Option {
	return func(l *Library) { l.inspector = i }
}

// WithComparator replaces the default fingerprint comparator.
func WithComparator(c fingerprint.Comparator) Option {
	return func(l *Library) { l.cmp = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// New creates a Library over db and fs.
func New(db index.Store, fs storage.Provider, opts ...Option) *Library {
	l := &Library{
		db:        db,
		fs:        fs,
		inspector: modfile.ProTracker{},
		cmp:       fingerprint.BitComparator{},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Key returns the stored filename for path: absolute, with forward slashes.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("library: resolve %s: %w", path, err)
	}
	return filepath.ToSlash(abs), nil
}

// AddOrUpdate reads, parses and hashes the file at path and reconciles the
// index record stored under its filename. A byte-identical file is left
// untouched. A changed file has every field refreshed except the filename
// and the personal comment.
func (l *Library) AddOrUpdate(ctx context.Context, path string) (Outcome, error) {
	key, err := Key(path)
	if err != nil {
		return IOError, fmt.Errorf("%w: %w", apperr.ErrIO, err)
	}
	osPath := filepath.FromSlash(key)

	data, err := l.fs.Read(osPath)
	if err != nil {
		return IOError, err
	}
	meta, err := l.fs.Stat(osPath)
	if err != nil {
		return IOError, err
	}
	mod, err := l.inspector.Inspect(data)
	if err != nil {
		if !errors.Is(err, apperr.ErrParse) {
			err = fmt.Errorf("library: inspect %s: %w: %w", key, apperr.ErrParse, err)
		}
		return ParseError, err
	}
	hash := checksum.Sum(data)

	l.mu.Lock()
	defer l.mu.Unlock()

	old, found, err := l.db.GetHash(ctx, key)
	if err != nil {
		return StoreError, err
	}
	if found && old == hash {
		return NoChange, nil
	}

	rec := newRecord(key, hash, data, meta, mod)
	if !found {
		if err := l.db.Insert(ctx, rec); err != nil {
			return StoreError, err
		}
		return Added, nil
	}
	if err := l.db.Update(ctx, rec); err != nil {
		return StoreError, err
	}
	return Updated, nil
}

func newRecord(key, hash string, data []byte, meta storage.FileMeta, m modfile.Module) models.Module {
	orders := 0
	for s := range m.NumSubsongs() {
		orders += len(m.Orders(s))
	}
	return models.Module{
		Hash:           hash,
		Filename:       key,
		FileSize:       int64(len(data)),
		FileDate:       meta.ModTime.Unix(),
		EditDate:       parseDate(m.Metadata(modfile.MetaDate)),
		Format:         m.Metadata(modfile.MetaType),
		Title:          m.Metadata(modfile.MetaTitle),
		Length:         m.Duration().Milliseconds(),
		NumChannels:    m.NumChannels(),
		NumPatterns:    m.NumPatterns(),
		NumOrders:      orders,
		NumSubsongs:    m.NumSubsongs(),
		NumSamples:     m.NumSamples(),
		NumInstruments: m.NumInstruments(),
		SampleText:     joinNames(m.SampleNames()),
		InstrumentText: joinNames(m.InstrumentNames()),
		Comments:       m.Metadata(modfile.MetaMessage),
		Artist:         m.Metadata(modfile.MetaArtist),
		NoteData:       notedata.Encode(m),
	}
}

// joinNames terminates every name with a newline.
func joinNames(names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate reads an ISO-8601 authoring date as unix seconds, 0 if unknown.
func parseDate(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}
