package logger

// Logger is the logging interface the cache layer writes to. Keyvals
// are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// New returns a logger for the given driver: "phuslu" (default),
// "slog", or "none".
func New(driver string) Logger {
	switch driver {
	case "slog":
		return NewSLogLogger(nil)
	case "none":
		return NewNullLogger()
	default:
		return NewPhusluLogger()
	}
}
