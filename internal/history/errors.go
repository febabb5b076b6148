package history

import "errors"

// Domain errors for the history package.
var (
	// ErrEntityIDRequired is returned when an operation needs an entity id.
	ErrEntityIDRequired = errors.New("history: entity id is required")

	// ErrInvalidRetention is returned by Prune for a non-positive retention.
	ErrInvalidRetention = errors.New("history: retention must be positive")
)
