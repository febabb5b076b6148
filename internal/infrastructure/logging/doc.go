// Package logging provides structured logging for the climate control service.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same fields and format.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8123)
//	logger.Component("climate").Warn("invalid payload", "topic", topic)
//
// Never log secrets, tokens or passwords.
package logging
