package store

import "errors"

// Sentinel errors for the taxonomy in spec §7. Checked with errors.Is.
var (
	// ErrNotFound is returned by lookups and renames against an id the
	// Store has no row for.
	ErrNotFound = errors.New("store: not found")

	// ErrIgnoredInsert is returned when an insert hit a path already in
	// the Store (sqlite's UNIQUE constraint) and the existing row was
	// kept; callers must treat this as a signal, not swallow it.
	ErrIgnoredInsert = errors.New("store: insert ignored, duplicate path")

	// ErrDuplicatePath is returned by RenameFile when the target path is
	// already taken by another row.
	ErrDuplicatePath = errors.New("store: duplicate path")
)
