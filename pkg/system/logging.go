// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions controls how NewLogger builds the CLI logger.
type LogOptions struct {
	// Level is a zap level name; empty means "warn", or "debug" when Verbose is set.
	Level   string
	Verbose bool
	// File, when set, receives JSON logs through a size-rotated writer.
	File string
	// Console defaults to os.Stderr so stdout stays clean for command output.
	Console io.Writer
}

// NewLogger returns a sugared logger writing human-readable lines to the
// console and, optionally, JSON lines to a rotated log file. The returned
// close func flushes and releases the file writer.
func NewLogger(opts LogOptions) (*zap.SugaredLogger, func(), error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, nil, err
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(console)), level),
	}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "ts"
		fileCfg.EncodeTime = zapcore.RFC3339TimeEncoder
		// the file always captures debug output regardless of the console level
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger.Sugar(), closeFn, nil
}

func resolveLevel(opts LogOptions) (zapcore.Level, error) {
	if opts.Level == "" {
		if opts.Verbose {
			return zapcore.DebugLevel, nil
		}
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.Verbose && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	return level, nil
}
