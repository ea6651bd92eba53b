package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/modlib/internal/models"
)

// Field selects a text column for the text filter.
type Field uint8

const (
	FieldFilename Field = 1 << iota
	FieldTitle
	FieldArtist
	FieldSampleText
	FieldInstrumentText
	FieldComments
	FieldPersonalComments

	FieldAll = FieldFilename | FieldTitle | FieldArtist | FieldSampleText |
		FieldInstrumentText | FieldComments | FieldPersonalComments
)

var fieldColumns = []struct {
	field Field
	name  string
	col   string
}{
	{FieldFilename, "filename", "filename"},
	{FieldTitle, "title", "title"},
	{FieldArtist, "artist", "artist"},
	{FieldSampleText, "samples", "sample_text"},
	{FieldInstrumentText, "instruments", "instrument_text"},
	{FieldComments, "comments", "comments"},
	{FieldPersonalComments, "personal", "personal_comments"},
}

// ErrUnknownField is returned for a field or sort name outside the whitelist.
var ErrUnknownField = errors.New("index: unknown field")

// ParseFields turns field names such as "title" or "samples" into a mask.
func ParseFields(names []string) (Field, error) {
	var f Field
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" {
			continue
		}
		if n == "all" {
			f |= FieldAll
			continue
		}
		found := false
		for _, fc := range fieldColumns {
			if fc.name == n {
				f |= fc.field
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownField, n)
		}
	}
	return f, nil
}

var sortColumns = map[string]string{
	"filename": "filename",
	"title":    "title",
	"filesize": "filesize",
	"filedate": "filedate",
	"editdate": "editdate",
	"length":   "length",
	"artist":   "artist",
}

// Range is an inclusive bound. Reversed bounds are swapped.
type Range struct {
	Min, Max int64
}

func (r Range) normalized() Range {
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

// Filter describes a search. Every active filter is ANDed with the others.
type Filter struct {
	Text   string
	Fields Field

	Size        *Range // bytes
	FileDate    *Range // unix seconds
	ReleaseDate *Range // unix seconds
	Duration    *Range // milliseconds

	// Phrases are note-data needles; each must be contained in the record.
	Phrases [][]byte

	Sort  string // one of the sortable columns, default filename
	Desc  bool
	Limit int // 0 means unlimited

	// ShowAll ignores every filter.
	ShowAll bool
}

// likePattern escapes LIKE metacharacters, maps the * and ? wildcards and
// wraps the result for substring matching.
func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`, `?`, `_`)
	return "%" + r.Replace(text) + "%"
}

func (f Filter) predicate() sq.And {
	var where sq.And
	if f.ShowAll {
		return where
	}
	if f.Text != "" && f.Fields != 0 {
		pat := likePattern(f.Text)
		var anyOf sq.Or
		for _, fc := range fieldColumns {
			if f.Fields&fc.field != 0 {
				anyOf = append(anyOf, sq.Expr(fc.col+` LIKE ? ESCAPE '\'`, pat))
			}
		}
		where = append(where, anyOf)
	}
	ranges := []struct {
		r   *Range
		col string
	}{
		{f.Size, "filesize"},
		{f.FileDate, "filedate"},
		{f.ReleaseDate, "editdate"},
		{f.Duration, "length"},
	}
	for _, rc := range ranges {
		if rc.r == nil {
			continue
		}
		r := rc.r.normalized()
		where = append(where, sq.Expr(rc.col+" BETWEEN ? AND ?", r.Min, r.Max))
	}
	for _, p := range f.Phrases {
		if len(p) == 0 {
			continue
		}
		where = append(where, sq.Expr("INSTR(note_data, ?) > 0", p))
	}
	return where
}

func (f Filter) build() (string, []any, error) {
	col := "filename"
	if f.Sort != "" {
		c, ok := sortColumns[strings.ToLower(f.Sort)]
		if !ok {
			return "", nil, fmt.Errorf("%w: sort %q", ErrUnknownField, f.Sort)
		}
		col = c
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	q := sq.Select(listColumns...).From("modlib_modules")
	if where := f.predicate(); len(where) > 0 {
		q = q.Where(where)
	}
	q = q.OrderBy(col + " " + dir)
	if col != "filename" {
		q = q.OrderBy("filename ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q.ToSql()
}

// Search returns the records matching f without their note data.
func (db *DB) Search(ctx context.Context, f Filter) ([]models.Module, error) {
	query, args, err := f.build()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("search", err)
	}
	defer rows.Close()

	var out []models.Module
	for rows.Next() {
		m, err := scanModule(rows, false)
		if err != nil {
			return nil, storeErr("search", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("search", err)
	}
	return out, nil
}
