package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode is an HVAC operating mode token as carried on the wire.
type Mode string

// HVAC modes accepted on mode topics.
const (
	ModeOff     Mode = "off"
	ModeAuto    Mode = "auto"
	ModeCool    Mode = "cool"
	ModeHeat    Mode = "heat"
	ModeDry     Mode = "dry"
	ModeFanOnly Mode = "fan_only"
)

// Modes lists every valid mode in display order.
var Modes = []Mode{ModeOff, ModeAuto, ModeCool, ModeHeat, ModeDry, ModeFanOnly}

// FanMode is a fan speed token.
type FanMode string

const (
	FanAuto   FanMode = "auto"
	FanLow    FanMode = "low"
	FanMedium FanMode = "medium"
	FanHigh   FanMode = "high"
)

// FanModes lists every valid fan mode. No handler consumes fan topics yet.
var FanModes = []FanMode{FanAuto, FanLow, FanMedium, FanHigh}

// On/off payload literals.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Valid reports whether m is one of the six known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeAuto, ModeCool, ModeHeat, ModeDry, ModeFanOnly:
		return true
	}
	return false
}

// ParseMode decodes a mode payload. Matching is exact and case-sensitive.
//
// Returns:
//   - Mode: The decoded mode
//   - error: ErrInvalidMode for anything outside the enum
func ParseMode(payload []byte) (Mode, error) {
	m := Mode(payload)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, payload)
	}
	return m, nil
}

// ParseFanMode decodes a fan mode payload.
func ParseFanMode(payload []byte) (FanMode, error) {
	f := FanMode(payload)
	switch f {
	case FanAuto, FanLow, FanMedium, FanHigh:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFanMode, payload)
}

// ParseTemperature decodes a temperature payload.
//
// Surrounding whitespace is ignored, so "21.5\n" decodes as 21.5.
// NaN and infinities are rejected even though strconv would accept
// their spellings.
func ParseTemperature(payload []byte) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTemperature, payload)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidTemperature, payload)
	}
	return v, nil
}

// ParseOnOff returns true only for the exact payload "ON".
// Anything else, including "on" and "1", is off.
func ParseOnOff(payload []byte) bool {
	return string(payload) == PayloadOn
}

// FormatTemperature encodes v as the shortest decimal that round-trips.
// 21.0 encodes as "21", 21.5 as "21.5".
func FormatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatMode returns the wire token for m.
func FormatMode(m Mode) string {
	return string(m)
}

// FormatOnOff encodes a boolean as "ON" or "OFF".
func FormatOnOff(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}
