package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormZapLogger routes GORM's logging through zap.
type GormZapLogger struct {
	ZapLogger     *zap.Logger
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// NewGormZapLogger creates a logger at the level named by level
// ("silent", "error", "warn" or "info").
func NewGormZapLogger(zapLogger *zap.Logger, level string) *GormZapLogger {
	return &GormZapLogger{
		ZapLogger:     zapLogger.Named("gorm"),
		LogLevel:      ParseGormLevel(level),
		SlowThreshold: 200 * time.Millisecond,
	}
}

// ParseGormLevel maps a config string to a GORM log level, defaulting to Warn.
func ParseGormLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// LogMode sets the log level.
func (l *GormZapLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		l.ZapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		l.ZapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		l.ZapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace logs SQL queries and their execution details.
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	// "record not found" is routine for session lookups
	case err != nil && l.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.ZapLogger.Error("GORM Trace", append(fields, zap.Error(err))...)
	case elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		l.ZapLogger.Warn("GORM Trace [SLOW]", fields...)
	case l.LogLevel >= logger.Info:
		l.ZapLogger.Debug("GORM Trace", fields...)
	}
}
