package library

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/modlib/internal/fingerprint"
	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/melody"
	"github.com/starford/modlib/internal/models"
)

// SearchQuery is a library search. Inactive filters are left zero.
type SearchQuery struct {
	Text   string
	Fields index.Field

	Size        *index.Range
	FileDate    *index.Range
	ReleaseDate *index.Range
	Duration    *index.Range

	// Melody is typed interval input or a pasted tracker grid.
	Melody string
	// Fingerprint is compressed fingerprint text; when it decodes to a
	// non-empty vector results are ordered by similarity.
	Fingerprint string

	Sort    string
	Desc    bool
	Limit   int
	ShowAll bool
}

// Hit is one search result.
type Hit struct {
	models.Module
	Score  float64 `json:"score,omitempty"`
	Scored bool    `json:"scored,omitempty"`
}

// Search runs q against the index. A melody that compiles to no phrases and
// a fingerprint that fails to decode each disable their own filter only.
func (l *Library) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	f := index.Filter{
		Text:        q.Text,
		Fields:      q.Fields,
		Size:        q.Size,
		FileDate:    q.FileDate,
		ReleaseDate: q.ReleaseDate,
		Duration:    q.Duration,
		Sort:        q.Sort,
		Desc:        q.Desc,
		Limit:       q.Limit,
		ShowAll:     q.ShowAll,
	}
	if strings.TrimSpace(q.Melody) != "" {
		phrases, err := melody.ParseInput(q.Melody)
		if err != nil {
			l.logger.Debug("search: melody ignored", slog.String("error", err.Error()))
		}
		for _, p := range phrases {
			f.Phrases = append(f.Phrases, p)
		}
	}

	vec, err := fingerprint.DecodeErr(q.Fingerprint)
	if err != nil {
		l.logger.Debug("search: fingerprint ignored", slog.String("error", err.Error()))
	}
	if len(vec) > 0 {
		// Rank over every match, then cut.
		f.Limit = 0
	}

	rows, err := l.db.Search(ctx, f)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	if len(vec) == 0 {
		for _, m := range rows {
			hits = append(hits, Hit{Module: m})
		}
		return hits, nil
	}

	ranked := fingerprint.Rank(vec, rows, func(m models.Module) (string, []uint32) {
		return m.Filename, fingerprint.Decode(m.Fingerprint)
	}, l.cmp)
	for _, r := range ranked {
		hits = append(hits, Hit{Module: r.Item, Score: r.Score, Scored: r.Scored})
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// FindDuplicates returns groups of records sharing identical content.
func (l *Library) FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	return l.db.Duplicates(ctx)
}

// Get returns the record stored under filename.
func (l *Library) Get(ctx context.Context, filename string) (*models.Module, error) {
	return l.db.Get(ctx, filename)
}

// SetPersonalComment replaces the user comment of a record. The comment
// survives content updates.
func (l *Library) SetPersonalComment(ctx context.Context, filename, text string) error {
	return l.db.SetPersonalComment(ctx, filename, text)
}

// SetFingerprint attaches fingerprint text to a record after checking that
// it decodes. Blank text clears the fingerprint.
func (l *Library) SetFingerprint(ctx context.Context, filename, text string) error {
	text = strings.TrimSpace(text)
	if _, err := fingerprint.DecodeErr(text); err != nil {
		return err
	}
	return l.db.SetFingerprint(ctx, filename, text)
}

// Remove drops the record stored under filename.
func (l *Library) Remove(ctx context.Context, filename string) error {
	return l.db.Delete(ctx, filename)
}

// Count returns the number of indexed modules.
func (l *Library) Count(ctx context.Context) (int, error) {
	return l.db.Count(ctx)
}
