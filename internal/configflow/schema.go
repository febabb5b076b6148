package configflow

import (
	"github.com/nerrad567/climate-control/internal/climate"
)

func userSchema() []Field {
	fields := []Field{{Name: climate.ConfName, Type: "string", Required: true, Default: climate.DefaultName}}
	for _, key := range climate.RequiredTopics {
		fields = append(fields, Field{Name: key, Type: "string", Required: true})
	}
	for _, key := range climate.OptionalTopics {
		fields = append(fields, Field{Name: key, Type: "string"})
	}
	return fields
}

// temperatureSchema lists the four numeric fields with their defaults.
// current supplies defaults for keys it holds; package defaults fill the rest.
func temperatureSchema(current map[string]any) []Field {
	defaults := []struct {
		key string
		def float64
	}{
		{climate.ConfMinTemp, climate.DefaultMinTemp},
		{climate.ConfMaxTemp, climate.DefaultMaxTemp},
		{climate.ConfTempStep, climate.DefaultTempStep},
		{climate.ConfPrecision, climate.DefaultPrecision},
	}

	fields := make([]Field, 0, len(defaults))
	for _, d := range defaults {
		var def any = d.def
		if v, ok := current[d.key]; ok && v != nil {
			def = v
		}
		fields = append(fields, Field{Name: d.key, Type: "float", Required: true, Default: def})
	}
	return fields
}

// parseTemperatures reads the numeric fields of input, falling back to
// the schema defaults for missing keys.
//
// Returns:
//   - map[string]any: The four values as float64
//   - map[string]string: Field errors for values that are not numbers
func parseTemperatures(input map[string]any, schema []Field) (map[string]any, map[string]string) {
	values := make(map[string]any, len(schema))
	errs := map[string]string{}

	for _, f := range schema {
		raw, ok := input[f.Name]
		if !ok || raw == nil {
			raw = f.Default
		}
		v, err := climate.ToFloat(raw)
		if err != nil {
			errs[f.Name] = ErrorInvalidNumber
			continue
		}
		values[f.Name] = v
	}
	return values, errs
}

// validateTemperatures applies the range checks in order and returns the
// first failure, or nil.
func validateTemperatures(values map[string]any) map[string]string {
	minTemp := values[climate.ConfMinTemp].(float64)
	maxTemp := values[climate.ConfMaxTemp].(float64)
	step := values[climate.ConfTempStep].(float64)
	precision := values[climate.ConfPrecision].(float64)

	switch {
	case minTemp >= maxTemp:
		return map[string]string{climate.ConfMinTemp: ErrorMinTempHigher}
	case step <= 0:
		return map[string]string{climate.ConfTempStep: ErrorInvalidTempStep}
	case precision <= 0:
		return map[string]string{climate.ConfPrecision: ErrorInvalidPrecision}
	}
	return nil
}
