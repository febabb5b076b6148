// Package sensor implements binary_sensor.heizung_active, the "Heizung
// Active" aggregation sensor.
//
// The sensor is on while at least one member of its group
// (group.heizung_climates by default) is in a state other than "off" or
// "idle". Members are resolved once when the sensor is attached.
package sensor
