// Package apperr holds the sentinel errors shared across modlib packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrIO marks a file that could not be read.
	ErrIO = errors.New("file unreadable")
	// ErrParse marks bytes that are not a recognised module.
	ErrParse = errors.New("not a recognised module")
	// ErrDecode marks malformed fingerprint input.
	ErrDecode = errors.New("malformed fingerprint")
	// ErrStore marks a failure of the persisted store.
	ErrStore = errors.New("store failure")
)
