package codec

import "errors"

var (
	// ErrInvalidMode is returned for payloads outside the HVAC mode enum.
	ErrInvalidMode = errors.New("codec: invalid hvac mode")

	// ErrInvalidFanMode is returned for payloads outside the fan mode enum.
	ErrInvalidFanMode = errors.New("codec: invalid fan mode")

	// ErrInvalidTemperature is returned for non-numeric or non-finite payloads.
	ErrInvalidTemperature = errors.New("codec: invalid temperature")
)
