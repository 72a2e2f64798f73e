// Package boolog wraps go.uber.org/zap behind the leveled errorf/warningf/
// debugf/infof API original_source/log.c exposes, so call sites read the
// same as the C original while getting structured, leveled output for
// free. Grounded on original_source/log.c's LOG_ERRORS..LOG_INFO level
// range and its program-prefix-plus-pid preamble.
package boolog

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors log.c's LOG_ERRORS..LOG_INFO ordering (lower is quieter).
type Level int

const (
	LevelErrors Level = iota
	LevelWarnings
	LevelInfo
	LevelDebug
)

// Log is the process-wide logger, started once via Start.
type Log struct {
	z    *zap.Logger
	name string
}

// Start builds a Log prefixed with "bin[pid]", at the given level, writing
// to stdout — matching startlog()'s default OUT and PRE construction.
func Start(bin string, pid int, level Level) (*Log, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.Encoding = "console"
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	cfg.OutputPaths = []string{"stdout"}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("boolog: build logger: %w", err)
	}

	name := bin
	if pid > 0 {
		name = fmt.Sprintf("%s[%d]", bin, pid)
	}
	return &Log{z: z.Named(name), name: name}, nil
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelErrors:
		return zapcore.ErrorLevel
	case LevelWarnings:
		return zapcore.WarnLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Errorf logs at error level.
func (l *Log) Errorf(format string, args ...any) { l.z.Sugar().Errorf(format, args...) }

// Warningf logs at warning level.
func (l *Log) Warningf(format string, args ...any) { l.z.Sugar().Warnf(format, args...) }

// Infof logs at info level.
func (l *Log) Infof(format string, args ...any) { l.z.Sugar().Infof(format, args...) }

// Debugf logs at debug level.
func (l *Log) Debugf(format string, args ...any) { l.z.Sugar().Debugf(format, args...) }

// Sync flushes any buffered log entries.
func (l *Log) Sync() error {
	err := l.z.Sync()
	// zap returns an error when syncing stdout/stderr on some platforms
	// even though the write itself succeeded; only surface real failures.
	if err != nil && !os.IsPermission(err) &&
		!errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		return err
	}
	return nil
}
