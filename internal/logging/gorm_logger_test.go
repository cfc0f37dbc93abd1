package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseGormLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent":  logger.Silent,
		"ERROR":   logger.Error,
		"info":    logger.Info,
		"warn":    logger.Warn,
		"unknown": logger.Warn,
	}
	for in, want := range tests {
		if got := ParseGormLevel(in); got != want {
			t.Errorf("ParseGormLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTraceSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormZapLogger(zap.New(core), "warn")

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	if logs.Len() != 0 {
		t.Errorf("Expected no log entries for record not found, got %d", logs.Len())
	}

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Errorf("Expected one error entry, got %d", logs.Len())
	}
}

func TestTraceSlowQuery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormZapLogger(zap.New(core), "warn")

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT pg_sleep(1)", 1 }, nil)
	if logs.FilterMessage("GORM Trace [SLOW]").Len() != 1 {
		t.Errorf("Expected a slow query warning, got %v", logs.All())
	}
}
