// Package climateswitch implements switch.climate, the optimistic MQTT
// switch that turns the heating on and off.
//
// The switch publishes "ON"/"OFF" to home/switch/climate/set and sets its
// own state immediately. Reports on home/switch/climate/state (QoS 1)
// overwrite it. It registers switch.turn_on and switch.turn_off.
package climateswitch
