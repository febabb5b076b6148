package platform

import "errors"

// Sentinel errors for the entity platform. Check with errors.Is.
var (
	// ErrEntityExists is returned when adding an entity whose unique id or
	// entity id is already registered.
	ErrEntityExists = errors.New("platform: entity already exists")

	// ErrEntityNotFound is returned when removing or looking up an unknown entity.
	ErrEntityNotFound = errors.New("platform: entity not found")

	// ErrInvalidEntityID is returned for ids not shaped "domain.object_id".
	ErrInvalidEntityID = errors.New("platform: invalid entity id")

	// ErrServiceNotFound is returned when calling an unregistered service.
	ErrServiceNotFound = errors.New("platform: service not found")

	// ErrInvalidServiceData is returned when service data cannot be interpreted.
	ErrInvalidServiceData = errors.New("platform: invalid service data")

	// ErrContextClosed is returned when registering on a closed Context.
	ErrContextClosed = errors.New("platform: context closed")
)
