package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/modlib/internal/apperr"
)

// FS implements Provider backed by the local file system.
type FS struct {
	exts []string // lower case, with leading dot; empty accepts everything
}

// NewFS creates a provider accepting files with one of the given extensions.
// Extensions are matched case-insensitively; an empty list accepts all files.
func NewFS(extensions []string) (*FS, error) {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ContainsAny(e[1:], `./\`) {
			return nil, fmt.Errorf("storage: invalid extension %q", e)
		}
		exts = append(exts, e)
	}
	return &FS{exts: exts}, nil
}

// Accepts reports whether path has an accepted extension.
func (f *FS) Accepts(path string) bool {
	if len(f.exts) == 0 {
		return true
	}
	return slices.Contains(f.exts, strings.ToLower(filepath.Ext(path)))
}

// List walks root and returns metadata for every accepted regular file,
// ordered by path. Unreadable subdirectories are skipped.
func (f *FS) List(root string) ([]FileMeta, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w: %w", apperr.ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", base)
	}

	var out []FileMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() && p != base {
				return fs.SkipDir
			}
			return walkErr
		}
		if !d.Type().IsRegular() || !f.Accepts(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // vanished during the walk
		}
		out = append(out, FileMeta{Path: p, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a file. Failures wrap apperr.ErrIO.
func (f *FS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w: %w", path, apperr.ErrIO, err)
	}
	return data, nil
}

// Stat returns file metadata. Directories are rejected with apperr.ErrIO.
func (f *FS) Stat(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, fmt.Errorf("storage: stat %s: %w: %w", path, apperr.ErrIO, err)
	}
	if info.IsDir() {
		return FileMeta{}, fmt.Errorf("storage: stat %s: is a directory: %w", path, apperr.ErrIO)
	}
	return FileMeta{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}
