// Package log builds the diagnostic logger used by netlog components and the
// netlogctl command.
//
// The event log written by a FileObserver is not produced here: this logger
// only reports degraded file operations, dropped entries and command progress.
//
// - In non-production environments: Debug level with readable text output
// - In production environments: Info level with structured JSON output
// - Text output whenever the destination is a terminal
//
// Usage:
//
//	logger := log.New("development", "netlogctl", os.Stderr)
//	defer logger.Sync()
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/mattn/go-isatty"

	"github.com/hyp3rd/netlog/internal/constants"
)

// NonProductionEnvironment selects the verbose text configuration.
const NonProductionEnvironment = constants.NonProductionEnvironment

// New creates a logger writing to out, stderr when nil. Writes are
// synchronous: diagnostics are rare and must not be lost when a short-lived
// command exits.
func New(environment, service string, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}

	level := InfoLevel
	if environment == NonProductionEnvironment {
		level = DebugLevel
	}

	opts := &slog.HandlerOptions{
		Level: level.slogLevel(),
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().Format(time.RFC3339))
			}

			return attr
		},
	}

	var handler slog.Handler
	if environment == NonProductionEnvironment || IsTerminal(out) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", service),
		slog.String("environment", environment),
	)

	return &slogLogger{logger: logger, level: level, out: out}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := file.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type slogLogger struct {
	logger *slog.Logger
	level  Level
	out    io.Writer
}

var _ Logger = (*slogLogger)(nil)

func (l *slogLogger) Debug(msg string) { l.log(DebugLevel, msg) }

func (l *slogLogger) Info(msg string) { l.log(InfoLevel, msg) }

func (l *slogLogger) Warn(msg string) { l.log(WarnLevel, msg) }

func (l *slogLogger) Error(msg string) { l.log(ErrorLevel, msg) }

func (l *slogLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}

	args := make([]any, 0, len(fields))
	for _, field := range fields {
		args = append(args, slog.Any(field.Key, field.Value))
	}

	return &slogLogger{logger: l.logger.With(args...), level: l.level, out: l.out}
}

func (l *slogLogger) WithField(key string, value any) Logger {
	return l.WithFields(Field{Key: key, Value: value})
}

func (l *slogLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}

	return l.WithFields(Field{Key: "error", Value: err.Error()})
}

func (l *slogLogger) GetLevel() Level {
	return l.level
}

// Sync flushes out when it is a regular file. Terminals and pipes do not
// support fsync and are written through anyway.
func (l *slogLogger) Sync() error {
	file, ok := l.out.(*os.File)
	if !ok {
		return nil
	}

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	err = file.Sync()
	if err != nil {
		return ewrap.Wrap(err, "syncing log output").
			WithMetadata("path", file.Name())
	}

	return nil
}

func (l *slogLogger) log(level Level, msg string) {
	l.logger.Log(context.Background(), level.slogLevel(), msg)
}
