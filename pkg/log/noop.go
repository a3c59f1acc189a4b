package log

// NoopLogger is a logger that does nothing.
type NoopLogger struct {
	level Level
}

// NewNoop creates a new NoopLogger.
func NewNoop() Logger {
	return &NoopLogger{level: InfoLevel}
}

var _ Logger = (*NoopLogger)(nil)

// Debug logs a message at the Debug level.
func (*NoopLogger) Debug(_ string) {}

// Info logs a message at the Info level.
func (*NoopLogger) Info(_ string) {}

// Warn logs a message at the Warn level.
func (*NoopLogger) Warn(_ string) {}

// Error logs a message at the Error level.
func (*NoopLogger) Error(_ string) {}

// WithFields returns the same logger.
func (l *NoopLogger) WithFields(_ ...Field) Logger { return l }

// WithField returns the same logger.
func (l *NoopLogger) WithField(_ string, _ any) Logger { return l }

// WithError returns the same logger.
func (l *NoopLogger) WithError(_ error) Logger { return l }

// GetLevel returns the current log level.
func (l *NoopLogger) GetLevel() Level { return l.level }

// Sync is a no-op operation.
func (*NoopLogger) Sync() error { return nil }
