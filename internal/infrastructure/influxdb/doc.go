// Package influxdb records climate telemetry in InfluxDB v2.
//
// Every entity state change is written as a point in the
// "climate_metrics" measurement, tagged with entity_id and domain. Climate
// controllers contribute their target and current temperatures; switches
// and binary sensors contribute an "active" 0/1 field.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry turned off
//	}
//	defer client.Close()
//
//	client.WriteClimateMetric("climate.living_room", "temperature", 21.5)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async failures are reported through SetOnError.
package influxdb
