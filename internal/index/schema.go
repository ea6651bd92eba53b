// Package index provides the SQLite-backed module store.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/modlib/internal/apperr"
)

const versionSchemaSQL = `
CREATE TABLE IF NOT EXISTS modlib_schema (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// migrations[i] upgrades the schema from version i to i+1.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS modlib_modules (
	hash              TEXT    NOT NULL,
	filename          TEXT    NOT NULL UNIQUE,
	filesize          INTEGER NOT NULL DEFAULT 0,
	filedate          INTEGER NOT NULL DEFAULT 0,
	editdate          INTEGER NOT NULL DEFAULT 0,
	format            TEXT    NOT NULL DEFAULT '',
	title             TEXT    NOT NULL DEFAULT '',
	length            INTEGER NOT NULL DEFAULT 0,
	num_channels      INTEGER NOT NULL DEFAULT 0,
	num_patterns      INTEGER NOT NULL DEFAULT 0,
	num_orders        INTEGER NOT NULL DEFAULT 0,
	num_subsongs      INTEGER NOT NULL DEFAULT 0,
	num_samples       INTEGER NOT NULL DEFAULT 0,
	num_instruments   INTEGER NOT NULL DEFAULT 0,
	sample_text       TEXT    NOT NULL DEFAULT '',
	instrument_text   TEXT    NOT NULL DEFAULT '',
	comments          TEXT    NOT NULL DEFAULT '',
	artist            TEXT    NOT NULL DEFAULT '',
	personal_comments TEXT    NOT NULL DEFAULT '',
	note_data         BLOB
);

CREATE INDEX IF NOT EXISTS idx_modules_hash ON modlib_modules(hash);
CREATE INDEX IF NOT EXISTS idx_modules_title ON modlib_modules(title);
`,
	`ALTER TABLE modlib_modules ADD COLUMN fingerprint TEXT NOT NULL DEFAULT '';`,
}

// SchemaVersion is the version a freshly opened store is migrated to.
var SchemaVersion = len(migrations)

// Options controls how the store is opened.
type Options struct {
	// Backup copies the existing database file to "<path>~" before opening.
	Backup bool
}

// DB wraps a sql.DB with module-store operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and migrates its
// schema. Failures wrap apperr.ErrStore.
func Open(path string, opts Options) (*DB, error) {
	if opts.Backup {
		if err := backup(path); err != nil {
			return nil, fmt.Errorf("index: backup: %w: %w", apperr.ErrStore, err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w: %w", apperr.ErrStore, err)
	}
	// Single writer for the lifetime of the process.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w: %w", apperr.ErrStore, err)
	}
	db := &DB{conn: conn, path: path}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: migrate: %w: %w", apperr.ErrStore, err)
	}
	return db, nil
}

// Close compacts the database and closes the connection. A failed VACUUM
// does not prevent closing.
func (db *DB) Close() error {
	_, _ = db.conn.Exec(`VACUUM`)
	return db.conn.Close()
}

// Version returns the schema version recorded in the store.
func (db *DB) Version(ctx context.Context) (int, error) {
	return readVersion(ctx, db.conn)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readVersion(ctx context.Context, q queryRower) (int, error) {
	var v int
	err := q.QueryRowContext(ctx, `SELECT value FROM modlib_schema WHERE name = 'version'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

// migrate applies every pending migration, each in its own transaction
// together with the version bump.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, versionSchemaSQL); err != nil {
		return fmt.Errorf("version table: %w", err)
	}
	current, err := readVersion(ctx, db.conn)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if current > len(migrations) {
		return fmt.Errorf("schema version %d is newer than supported %d", current, len(migrations))
	}
	for v := current; v < len(migrations); v++ {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO modlib_schema (name, value) VALUES ('version', ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value
		`, v+1)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d: record version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", v+1, err)
		}
	}
	return nil
}

// backup replaces "<path>~" with a copy of path. A missing database is not
// an error.
func backup(path string) error {
	src, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + "~")
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
