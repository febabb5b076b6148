// Package automation provides the mirror automation engine.
//
// A mirror rule watches one source entity (by default the aggregation
// sensor binary_sensor.heizung_active) and drives one switch (by default
// switch.climate):
//
//	source new state == "on"  → switch.turn_on  target
//	any other new state       → switch.turn_off target
//	source removed (no state) → nothing
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                   │
//	│  ┌──────────────┐        ┌───────────────────────┐   │
//	│  │   Registry   │        │  platform.Bus          │   │
//	│  │(registry.go) │──rules─▶  Subscribe(source)     │   │
//	│  └──────────────┘        └───────────────────────┘   │
//	│        │ on event                                     │
//	│        ▼                                              │
//	│  1. ServiceFor(new_state)                             │
//	│  2. services.Call("switch", turn_on|turn_off)         │
//	│  3. Record Run (repository.go, automation_runs)       │
//	│  4. Broadcast "automation.run" on the WebSocket hub   │
//	└──────────────────────────────────────────────────────┘
//
// The rule has no memory and no loop protection beyond the one-way
// dependency: the switch's own state never feeds back into the sensor.
//
// # Thread Safety
//
// Registry and Engine are safe for concurrent use from multiple goroutines.
//
// # Usage
//
//	registry := automation.NewRegistry()
//	registry.SetLogger(log)
//	if _, err := registry.Add(automation.DefaultRule()); err != nil {
//	    return err
//	}
//
//	engine := automation.NewEngine(registry, host.Bus(), host.Services(),
//	    automation.NewSQLiteRepository(db.DB), hub, metrics, log)
//	engine.Start()
//	defer engine.Stop()
package automation
