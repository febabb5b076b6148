// Package history records entity state changes.
//
// A Recorder listens to every state_changed event and writes a JSON
// snapshot of the new state to the state_history table. The same event
// feeds the optional InfluxDB sink (numeric attributes only) and the
// Prometheus gauges. Old rows are removed by RunPruner.
package history
