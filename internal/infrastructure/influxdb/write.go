package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementClimate is the measurement all entity snapshots are written to.
const MeasurementClimate = "climate_metrics"

// WriteClimateMetric writes a single numeric reading for an entity.
//
// Example:
//
//	client.WriteClimateMetric("climate.living_room", "current_temperature", 21.5)
func (c *Client) WriteClimateMetric(entityID string, field string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementClimate,
		map[string]string{"entity_id": entityID},
		map[string]any{field: value},
		time.Now(),
	))
}

// WriteStateSnapshot writes one point describing an entity state change.
//
// Parameters:
//   - entityID: The entity id, e.g. "climate.living_room"
//   - state: The state string; written as the "state" field
//   - numeric: Numeric attributes to record (temperature, current_temperature...)
//   - at: When the state changed
func (c *Client) WriteStateSnapshot(entityID, state string, numeric map[string]float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewStatePoint(entityID, state, numeric, at))
}

// NewStatePoint builds the point written by WriteStateSnapshot.
//
// The entity domain (text before the first '.') is added as a tag.
// On/off entities also get an "active" field of 1 or 0 so the series
// can be graphed without string handling.
func NewStatePoint(entityID, state string, numeric map[string]float64, at time.Time) *write.Point {
	tags := map[string]string{
		"entity_id": entityID,
		"domain":    domainOf(entityID),
	}

	fields := make(map[string]any, len(numeric)+2)
	fields["state"] = state
	for k, v := range numeric {
		fields[k] = v
	}
	switch state {
	case "on":
		fields["active"] = 1.0
	case "off":
		fields["active"] = 0.0
	}

	return write.NewPoint(MeasurementClimate, tags, fields, at)
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func domainOf(entityID string) string {
	for i := 0; i < len(entityID); i++ {
		if entityID[i] == '.' {
			return entityID[:i]
		}
	}
	return entityID
}
