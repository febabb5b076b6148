// Package metrics exposes Prometheus metrics for the climate control service.
//
// A private registry (not the global default) carries Go runtime and
// process collectors, a build_info gauge, MQTT traffic counters, climate
// command and rejected-payload counters, automation run counters and
// per-entity gauges for on/off state and temperatures.
//
//	m := metrics.New(cfg.Metrics.Namespace, version)
//	mqttClient.SetObserver(m)
//	router.Handle("/metrics", m.Handler())
package metrics
