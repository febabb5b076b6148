// Package codec converts MQTT payloads to and from climate values.
//
// Three kinds of payload exist:
//
//	mode         "off" | "auto" | "cool" | "heat" | "dry" | "fan_only"
//	temperature  finite decimal, e.g. "21.5"
//	on/off       "ON" | "OFF"
//
// Decoding a mode or temperature can fail; callers log and drop the
// message. On/off decoding never fails: every payload other than the
// exact token "ON" decodes as off.
package codec
