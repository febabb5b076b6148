package climate

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Topics are the MQTT topics of one controller.
type Topics struct {
	ModeCommand        string `json:"mode_command_topic"`
	ModeState          string `json:"mode_state_topic"`
	TemperatureCommand string `json:"temperature_command_topic"`
	TemperatureState   string `json:"temperature_state_topic"`
	CurrentTemperature string `json:"current_temperature_topic"`

	// Stored for completeness; no handler uses them.
	PowerCommand   string `json:"power_command_topic,omitempty"`
	PowerState     string `json:"power_state_topic,omitempty"`
	FanModeCommand string `json:"fan_mode_command_topic,omitempty"`
	FanModeState   string `json:"fan_mode_state_topic,omitempty"`
}

// EntryConfig is the controller configuration held by a config entry.
type EntryConfig struct {
	Name      string
	Topics    Topics
	MinTemp   float64
	MaxTemp   float64
	TempStep  float64
	Precision float64
}

// ParseEntryConfig builds an EntryConfig from entry data overlaid with
// entry options. Numeric settings fall back to the package defaults.
//
// Returns:
//   - error: ErrMissingTopic or ErrInvalidNumber
func ParseEntryConfig(data, options map[string]any) (EntryConfig, error) {
	merged := make(map[string]any, len(data)+len(options))
	maps.Copy(merged, data)
	maps.Copy(merged, options)

	cfg := EntryConfig{
		Name: stringValue(merged, ConfName),
		Topics: Topics{
			ModeCommand:        stringValue(merged, ConfModeCommandTopic),
			ModeState:          stringValue(merged, ConfModeStateTopic),
			TemperatureCommand: stringValue(merged, ConfTemperatureCommandTopic),
			TemperatureState:   stringValue(merged, ConfTemperatureStateTopic),
			CurrentTemperature: stringValue(merged, ConfCurrentTemperatureTopic),
			PowerCommand:       stringValue(merged, ConfPowerCommandTopic),
			PowerState:         stringValue(merged, ConfPowerStateTopic),
			FanModeCommand:     stringValue(merged, ConfFanModeCommandTopic),
			FanModeState:       stringValue(merged, ConfFanModeStateTopic),
		},
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	for _, key := range RequiredTopics {
		if stringValue(merged, key) == "" {
			return EntryConfig{}, fmt.Errorf("%w: %s", ErrMissingTopic, key)
		}
	}

	numbers := []struct {
		key  string
		dst  *float64
		dflt float64
	}{
		{ConfMinTemp, &cfg.MinTemp, DefaultMinTemp},
		{ConfMaxTemp, &cfg.MaxTemp, DefaultMaxTemp},
		{ConfTempStep, &cfg.TempStep, DefaultTempStep},
		{ConfPrecision, &cfg.Precision, DefaultPrecision},
	}
	for _, n := range numbers {
		raw, ok := merged[n.key]
		if !ok || raw == nil {
			*n.dst = n.dflt
			continue
		}
		v, err := ToFloat(raw)
		if err != nil {
			return EntryConfig{}, fmt.Errorf("%s: %w", n.key, err)
		}
		*n.dst = v
	}

	return cfg, nil
}

// ToFloat converts a JSON number, a Go numeric type or a numeric string
// to a finite float64.
func ToFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, n)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidNumber, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidNumber)
	}
	return f, nil
}

func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
