// Package logger provides the zap-backed logger injected into every crawl component.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02 15:04:05"

// Interface is the logging surface used by the crawler.
type Interface interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger with the given fields attached.
	With(fields ...Field) Interface
	// Sync flushes any buffered log entries.
	Sync() error
}

// Field is a key/value pair attached to a log entry.
type Field = zap.Field

// Config selects destinations and verbosity.
type Config struct {
	// Dir receives event.log and error.log. Empty disables file output.
	Dir   string
	Level string
	// Encoding is "console" or "json".
	Encoding string
	Console  bool
}

// Logger writes to event.log, error.log and optionally stdout.
type Logger struct {
	z       *zap.Logger
	closers []func()
}

// New creates a Logger. Callers must call Close when the run ends.
func New(cfg Config) (*Logger, error) {
	level := ParseLevel(cfg.Level)
	encoder := newEncoder(cfg.Encoding)

	var (
		cores   []zapcore.Core
		closers []func()
	)

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		events, closeEvents, err := zap.Open(filepath.Join(cfg.Dir, "event.log"))
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		closers = append(closers, closeEvents)

		errs, closeErrs, err := zap.Open(filepath.Join(cfg.Dir, "error.log"))
		if err != nil {
			closeEvents()
			return nil, fmt.Errorf("failed to open error log: %w", err)
		}
		closers = append(closers, closeErrs)

		cores = append(cores,
			zapcore.NewCore(encoder, events, level),
			zapcore.NewCore(encoder, errs, zapcore.ErrorLevel),
		)
	}

	if cfg.Console || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{z: z, closers: closers}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

func newEncoder(encoding string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	if strings.EqualFold(encoding, "json") {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

// ParseLevel converts a string level to zapcore.Level, defaulting to debug.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// With returns a child logger sharing the same outputs.
func (l *Logger) With(fields ...Field) Interface {
	return &Logger{z: l.z.With(fields...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Close flushes and releases the log files.
func (l *Logger) Close() error {
	err := l.z.Sync()
	for _, c := range l.closers {
		c()
	}
	l.closers = nil
	// stdout cannot be synced on some platforms
	if err != nil && strings.Contains(err.Error(), "/dev/stdout") {
		return nil
	}
	return err
}
