// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package logger provides the leveled, structured logging abstraction used
// across the library. Hosts plug in a *slog.Logger through the public
// options; packages log through LoggerInterface so tests can capture output.
package logger

import (
	"context"
	"log/slog"
	"os"
)

type Level string

const (
	Info  Level = "info"
	Err   Level = "error"
	Warn  Level = "warn"
	Debug Level = "debug"
)

// LoggerInterface defines the methods that a logger should implement
type LoggerInterface interface {
	Log(ctx context.Context, level Level, message string, fields ...any)
}

type adapter struct {
	logging *slog.Logger
}

// New wraps an slog.Logger for use by the library. A default logger writing
// text to stdout is provided when l is nil.
func New(l *slog.Logger) LoggerInterface {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return &adapter{logging: l}
}

// Nop returns a logger that discards everything.
func Nop() LoggerInterface {
	return &adapter{logging: slog.New(slog.DiscardHandler)}
}

func (a *adapter) Log(ctx context.Context, level Level, message string, fields ...any) {
	if a == nil || a.logging == nil {
		return
	}
	var slogLevel slog.Level
	switch level {
	case Err:
		slogLevel = slog.LevelError
	case Warn:
		slogLevel = slog.LevelWarn
	case Debug:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}
	a.logging.Log(ctx, slogLevel, message, fields...)
}

// Field creates a slog field for any value
func Field(key string, value any) any {
	return slog.Any(key, value)
}
