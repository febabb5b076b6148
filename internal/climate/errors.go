package climate

import "errors"

// Domain errors for the climate package.
var (
	// ErrMissingTopic is returned when entry data lacks a required topic.
	ErrMissingTopic = errors.New("climate: missing topic")

	// ErrInvalidNumber is returned when a numeric setting is not a number.
	ErrInvalidNumber = errors.New("climate: invalid number")

	// ErrEntryNotLoaded is returned when unloading an entry that has no controller.
	ErrEntryNotLoaded = errors.New("climate: entry not loaded")

	// ErrEntryLoaded is returned when setting up an entry twice.
	ErrEntryLoaded = errors.New("climate: entry already loaded")
)
