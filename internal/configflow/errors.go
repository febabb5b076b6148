package configflow

import "errors"

// Domain errors for the configflow package.
var (
	// ErrFlowNotFound is returned for unknown or finished flow IDs.
	ErrFlowNotFound = errors.New("configflow: flow not found")

	// ErrUnknownHandler is returned when starting a flow for a domain
	// without a flow handler.
	ErrUnknownHandler = errors.New("configflow: unknown handler")

	// ErrFlowInProgress is returned when an options flow is already open
	// for the entry.
	ErrFlowInProgress = errors.New("configflow: flow already in progress")
)
