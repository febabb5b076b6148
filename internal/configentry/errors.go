package configentry

import "errors"

// Domain errors for the configentry package.
var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("configentry: not found")

	// ErrEntryExists is returned when an entry with the same domain and
	// unique ID is already stored.
	ErrEntryExists = errors.New("configentry: already exists")

	// ErrInvalidEntry is returned when an entry lacks a domain or title.
	ErrInvalidEntry = errors.New("configentry: invalid entry")
)
