package configflow

import "github.com/nerrad567/climate-control/internal/configentry"

// ResultType says what a flow step produced.
type ResultType string

const (
	// ResultForm asks for (more) input on StepID.
	ResultForm ResultType = "form"
	// ResultCreateEntry ends the flow with a stored entry or options.
	ResultCreateEntry ResultType = "create_entry"
	// ResultAbort ends the flow without storing anything.
	ResultAbort ResultType = "abort"
)

// Step IDs.
const (
	StepUser    = "user"
	StepClimate = "climate"
	StepInit    = "init"
)

// Form error keys. Field errors are keyed by field name, flow-wide
// errors by ErrorBase.
const (
	ErrorBase = "base"

	ErrorInvalidName      = "invalid_name"
	ErrorMQTTUnavailable  = "mqtt_unavailable"
	ErrorInvalidTopic     = "invalid_topic"
	ErrorTopicNotExist    = "topic_not_exist"
	ErrorMinTempHigher    = "min_temp_higher"
	ErrorInvalidTempStep  = "invalid_temp_step"
	ErrorInvalidPrecision = "invalid_precision"
	ErrorInvalidNumber    = "invalid_number"
	ErrorUnknown          = "unknown"

	ReasonAlreadyConfigured = "already_configured"
)

// Field describes one input of a form.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "string" or "float"
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// Result is the outcome of starting or advancing a flow.
type Result struct {
	Type    ResultType        `json:"type"`
	FlowID  string            `json:"flow_id"`
	Handler string            `json:"handler"`
	StepID  string            `json:"step_id,omitempty"`
	Schema  []Field           `json:"data_schema,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Title   string            `json:"title,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`

	// Entry is the created entry of a finished config flow, or the
	// updated entry of a finished options flow.
	Entry *configentry.Entry `json:"result,omitempty"`
}
