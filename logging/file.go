package logging

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for file logs.
const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// NewFileLogger returns a logger that writes console formatted Info+ logs to stdout and JSON
// logs to a size rotated file at path. The returned close function flushes and releases the file.
func NewFileLogger(name, path string, level Level) (Logger, func() error) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		zapcore.AddSync(rotator),
		zapcore.DebugLevel,
	)
	logger := newImpl(name, level, zapcore.NewTee(newStdoutCore(), fileCore))
	return logger, func() error {
		//nolint:errcheck
		logger.Sync()
		return rotator.Close()
	}
}
