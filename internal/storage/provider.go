// Package storage defines the file-system access used to find and read
// module files.
package storage

import "time"

// FileMeta describes one candidate module file.
type FileMeta struct {
	Path    string // absolute, OS separators
	Size    int64
	ModTime time.Time
}

// Provider is the interface for library file operations.
type Provider interface {
	// List walks root and returns every accepted file below it.
	List(root string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat returns metadata for the file at path.
	Stat(path string) (FileMeta, error)
	// Accepts reports whether path passes the extension filter.
	Accepts(path string) bool
}
