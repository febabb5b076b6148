package platform

// Logger is the logging surface used across the platform and the entities
// built on it. Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// orNoop returns l, or a NoopLogger when l is nil.
func orNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
