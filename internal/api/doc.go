// Package api implements the HTTP REST API and WebSocket server for the
// climate control service.
//
// This package provides:
//   - Entity state reads and service calls (set_hvac_mode, turn_on...)
//   - Config flow and options flow endpoints plus config entry management
//   - State history, automation run and audit trail queries
//   - WebSocket hub relaying state_changed and automation.run events
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Security
//
// Every route except /health and /metrics requires a bearer token signed
// with security.jwt.secret. The token's role selects which routes it may
// use. WebSocket connections use single-use tickets to keep tokens out
// of URLs.
//
// # Graceful Degradation
//
// The server runs while the broker is down: reads and WebSocket work,
// service calls still return 200 but their publishes fail and are logged.
// History, run and audit endpoints answer 503 when their stores are disabled.
package api
