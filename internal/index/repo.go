package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/modlib/internal/apperr"
	"github.com/starford/modlib/internal/models"
)

// listColumns are the columns read for listings; note_data is left out.
var listColumns = []string{
	"hash", "filename", "filesize", "filedate", "editdate", "format", "title",
	"length", "num_channels", "num_patterns", "num_orders", "num_subsongs",
	"num_samples", "num_instruments", "sample_text", "instrument_text",
	"comments", "artist", "personal_comments", "fingerprint",
}

func storeErr(op string, err error) error {
	return fmt.Errorf("index: %s: %w: %w", op, apperr.ErrStore, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModule(s scanner, withNotes bool) (models.Module, error) {
	var m models.Module
	dest := []any{
		&m.Hash, &m.Filename, &m.FileSize, &m.FileDate, &m.EditDate, &m.Format, &m.Title,
		&m.Length, &m.NumChannels, &m.NumPatterns, &m.NumOrders, &m.NumSubsongs,
		&m.NumSamples, &m.NumInstruments, &m.SampleText, &m.InstrumentText,
		&m.Comments, &m.Artist, &m.PersonalComment, &m.Fingerprint,
	}
	if withNotes {
		dest = append(dest, &m.NoteData)
	}
	err := s.Scan(dest...)
	return m, err
}

// Insert stores a new record. The filename must not be present yet.
func (db *DB) Insert(ctx context.Context, m models.Module) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO modlib_modules (
			hash, filename, filesize, filedate, editdate, format, title, length,
			num_channels, num_patterns, num_orders, num_subsongs, num_samples,
			num_instruments, sample_text, instrument_text, comments, artist,
			personal_comments, note_data, fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Hash, m.Filename, m.FileSize, m.FileDate, m.EditDate, m.Format, m.Title, m.Length,
		m.NumChannels, m.NumPatterns, m.NumOrders, m.NumSubsongs, m.NumSamples,
		m.NumInstruments, m.SampleText, m.InstrumentText, m.Comments, m.Artist,
		m.PersonalComment, m.NoteData, m.Fingerprint)
	if err != nil {
		return storeErr("insert", err)
	}
	return nil
}

// Update overwrites the record stored under m.Filename with the content
// derived fields of m. The personal comment is kept and the fingerprint,
// which belonged to the old content, is cleared.
func (db *DB) Update(ctx context.Context, m models.Module) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE modlib_modules SET
			hash = ?, filesize = ?, filedate = ?, editdate = ?, format = ?,
			title = ?, length = ?, num_channels = ?, num_patterns = ?,
			num_orders = ?, num_subsongs = ?, num_samples = ?,
			num_instruments = ?, sample_text = ?, instrument_text = ?,
			comments = ?, artist = ?, note_data = ?, fingerprint = ''
		WHERE filename = ?
	`, m.Hash, m.FileSize, m.FileDate, m.EditDate, m.Format,
		m.Title, m.Length, m.NumChannels, m.NumPatterns,
		m.NumOrders, m.NumSubsongs, m.NumSamples,
		m.NumInstruments, m.SampleText, m.InstrumentText,
		m.Comments, m.Artist, m.NoteData, m.Filename)
	if err != nil {
		return storeErr("update", err)
	}
	return affected(res, "update", m.Filename)
}

// Get returns the full record for filename, note data included.
func (db *DB) Get(ctx context.Context, filename string) (*models.Module, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+strings.Join(listColumns, ", ")+`, note_data FROM modlib_modules WHERE filename = ?`, filename)
	m, err := scanModule(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get %s: %w", filename, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return &m, nil
}

// GetHash returns the stored digest for filename. ok is false when no record
// exists.
func (db *DB) GetHash(ctx context.Context, filename string) (hash string, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx, `SELECT hash FROM modlib_modules WHERE filename = ?`, filename).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get hash", err)
	}
	return hash, true, nil
}

// Delete removes the record for filename.
func (db *DB) Delete(ctx context.Context, filename string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM modlib_modules WHERE filename = ?`, filename)
	if err != nil {
		return storeErr("delete", err)
	}
	return affected(res, "delete", filename)
}

// AllFilenames returns every stored filename in ascending order.
func (db *DB) AllFilenames(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT filename FROM modlib_modules ORDER BY filename`)
	if err != nil {
		return nil, storeErr("all filenames", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, storeErr("all filenames", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetPersonalComment replaces the user comment of a record.
func (db *DB) SetPersonalComment(ctx context.Context, filename, text string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE modlib_modules SET personal_comments = ? WHERE filename = ?`, text, filename)
	if err != nil {
		return storeErr("set comment", err)
	}
	return affected(res, "set comment", filename)
}

// SetFingerprint attaches fingerprint text to a record. Empty text clears it.
func (db *DB) SetFingerprint(ctx context.Context, filename, text string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE modlib_modules SET fingerprint = ? WHERE filename = ?`, text, filename)
	if err != nil {
		return storeErr("set fingerprint", err)
	}
	return affected(res, "set fingerprint", filename)
}

// Duplicates groups records sharing a digest. Only groups with more than one
// member are returned. Filenames are sorted within a group and groups are
// ordered by their first filename.
func (db *DB) Duplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT hash, filename FROM modlib_modules
		WHERE hash IN (
			SELECT hash FROM modlib_modules GROUP BY hash HAVING COUNT(*) > 1
		)
		ORDER BY hash, filename
	`)
	if err != nil {
		return nil, storeErr("duplicates", err)
	}
	defer rows.Close()

	var groups []models.DuplicateGroup
	for rows.Next() {
		var hash, filename string
		if err := rows.Scan(&hash, &filename); err != nil {
			return nil, storeErr("duplicates", err)
		}
		if n := len(groups); n == 0 || groups[n-1].Hash != hash {
			groups = append(groups, models.DuplicateGroup{Hash: hash})
		}
		g := &groups[len(groups)-1]
		g.Filenames = append(g.Filenames, filename)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("duplicates", err)
	}
	slices.SortFunc(groups, func(a, b models.DuplicateGroup) int {
		return strings.Compare(a.Filenames[0], b.Filenames[0])
	})
	return groups, nil
}

// Count returns the number of stored records.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM modlib_modules`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

func affected(res sql.Result, op, filename string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("index: %s %s: %w", op, filename, apperr.ErrNotFound)
	}
	return nil
}
