// Package platform is the small entity runtime the climate integrations
// run on.
//
// It provides:
//   - Host: registers entities, attaches them and publishes their state
//   - StateMachine: current state of every entity with change events
//   - Bus: synchronous, ordered delivery of state change events
//   - Services: domain.service handlers addressed by entity_id
//   - Mux: shares one MQTT subscription between many entities
//   - Context: per-domain runtime data and ordered teardown
//
// Event Delivery:
//
// Handlers run on the goroutine that wrote the state. A write made from
// inside a handler is queued and delivered after the current event, so
// handlers never deadlock and every subscriber sees events in write order.
//
// Usage:
//
//	host := platform.NewHost(mqttClient, log.Component("platform"))
//	if err := host.AddEntity(ctx, entity); err != nil {
//	    return err
//	}
//	unsub := host.Bus().Subscribe([]string{"switch.climate"}, func(ctx context.Context, e platform.Event) {
//	    // react to e.NewState
//	})
//	defer unsub()
package platform
