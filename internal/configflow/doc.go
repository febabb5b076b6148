// Package configflow implements the interactive setup wizard and the
// options flow for climate_control config entries.
//
// A config flow collects a name and the MQTT topics, checks that the
// broker is reachable and the topics can be subscribed, then collects
// the temperature limits and creates a config entry. An options flow
// edits the temperature limits of an existing entry.
//
// Flows are held in memory and expire after an hour without finishing.
package configflow
