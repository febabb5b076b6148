package climate

import "github.com/nerrad567/climate-control/internal/codec"

const (
	// Domain is the integration domain config entries are stored under.
	Domain = "climate_control"

	// DefaultName is the display name offered by the config flow.
	DefaultName = "Climate Control"

	// EntityDomain is the entity domain of climate controllers.
	EntityDomain = "climate"
)

// Config keys shared by the config flow, the options flow and entry data.
const (
	ConfName      = "name"
	ConfMinTemp   = "min_temp"
	ConfMaxTemp   = "max_temp"
	ConfTempStep  = "temp_step"
	ConfPrecision = "precision"

	ConfModeCommandTopic        = "mode_command_topic"
	ConfModeStateTopic          = "mode_state_topic"
	ConfTemperatureCommandTopic = "temperature_command_topic"
	ConfTemperatureStateTopic   = "temperature_state_topic"
	ConfCurrentTemperatureTopic = "current_temperature_topic"
	ConfPowerCommandTopic       = "power_command_topic"
	ConfPowerStateTopic         = "power_state_topic"
	ConfFanModeCommandTopic     = "fan_mode_command_topic"
	ConfFanModeStateTopic       = "fan_mode_state_topic"
)

// Default temperature settings.
const (
	DefaultMinTemp   = 7.0
	DefaultMaxTemp   = 35.0
	DefaultTempStep  = 0.5
	DefaultPrecision = 0.1
)

// Service names and their data keys.
const (
	ServiceSetTemperature = "set_temperature"
	ServiceSetHVACMode    = "set_hvac_mode"

	AttrTemperature = "temperature"
	AttrHVACMode    = "hvac_mode"
)

// UnitCelsius is the only temperature unit supported.
const UnitCelsius = "°C"

const (
	qosSubscribe byte = 1
	qosCommand   byte = 0
)

// RequiredTopics are the topic keys the config flow must collect.
var RequiredTopics = []string{
	ConfModeCommandTopic,
	ConfModeStateTopic,
	ConfTemperatureCommandTopic,
	ConfTemperatureStateTopic,
	ConfCurrentTemperatureTopic,
}

// OptionalTopics are collected but not used by the controller.
var OptionalTopics = []string{
	ConfPowerCommandTopic,
	ConfPowerStateTopic,
	ConfFanModeCommandTopic,
	ConfFanModeStateTopic,
}

// hvacModes lists the modes as plain strings for the hvac_modes attribute.
func hvacModes() []string {
	out := make([]string, len(codec.Modes))
	for i, m := range codec.Modes {
		out[i] = string(m)
	}
	return out
}
