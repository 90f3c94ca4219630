// Package sentinel holds the storage-level errors shared by every store.
// Stores wrap them; services translate them with errors.Is into domain-errors
// codes before they reach a handler.
package sentinel

import "errors"

var (
	// ErrNotFound covers rows that are missing and rows hidden from the
	// caller's organizations alike.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the row's version moved under a conditional write.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the row exists but its status forbids the write.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable means the store could not be reached or aborted the
	// transaction.
	ErrUnavailable = errors.New("unavailable")
)
