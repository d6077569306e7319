// Package util provides shared logging setup.
package util

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures NewLogger.
type LogOptions struct {
	// Level is one of "debug", "info", "warn", "error". Unrecognised values
	// fall back to "info".
	Level string
	// Format is "json" or "console".
	Format string
	// File, when set, additionally receives logs through a size-rotated
	// writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name onto a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// NewLogger creates a structured zap logger from opts.
func NewLogger(opts LogOptions) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opts.Format, "console") {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	level := ParseLevel(opts.Level)
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	if opts.File != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
		core = zapcore.NewTee(core, zapcore.NewCore(encoder, file, level))
	}
	return zap.New(core, zap.AddCaller())
}

// SetDefault installs logger as the process-wide zap logger.
func SetDefault(logger *zap.Logger) {
	zap.ReplaceGlobals(logger)
}
