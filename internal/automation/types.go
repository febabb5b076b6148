package automation

import "time"

// Rule mirrors the on/off state of a source entity onto a target switch.
//
// When the source changes to "on" the engine calls switch.turn_on on the
// target. Any other new state calls switch.turn_off. Removal of the
// source (no new state) does nothing.
type Rule struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Enabled bool   `json:"enabled"`
}

// Run is the audit record of one rule execution.
type Run struct {
	ID            int64     `json:"id"`
	AutomationID  string    `json:"automation_id"`
	TriggerEntity string    `json:"trigger_entity"`
	TriggerState  string    `json:"trigger_state"`
	Service       string    `json:"service"`
	Target        string    `json:"target"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Default mirror rule: the aggregation sensor drives the climate switch.
const (
	DefaultRuleID = "climate_mirror"
	DefaultSource = "binary_sensor.heizung_active"
	DefaultTarget = "switch.climate"
)

// Switch services called by the engine.
const (
	SwitchDomain   = "switch"
	ServiceTurnOn  = "turn_on"
	ServiceTurnOff = "turn_off"
)

// DefaultRule returns the built-in sensor to switch mirror.
func DefaultRule() Rule {
	return Rule{ID: DefaultRuleID, Source: DefaultSource, Target: DefaultTarget, Enabled: true}
}
