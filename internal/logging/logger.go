package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voice-rating/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init builds a logger that writes each level to its own rotating JSON file
// under projectRoot/conf.Directory and everything to a colored console.
func Init(projectRoot string, conf config.LoggingConfig) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	logDir := conf.Directory
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(projectRoot, logDir)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	cores := []zapcore.Core{newConsoleCore()}
	for _, level := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		cores = append(cores, newFileCore(logDir, level, conf, encoderConfig))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// newFileCore creates a core that writes exactly one level to a rotating file.
func newFileCore(logDir string, level zapcore.Level, conf config.LoggingConfig, encoderConfig zapcore.EncoderConfig) zapcore.Core {
	// e.g. '2026-10-17-info.log'
	fileName := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), level.String()))

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    conf.MaxSize, // megabytes
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAge, // days
		Compress:   conf.Compress,
	})

	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == level
	})

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, levelEnabler)
}

// newConsoleCore creates a core that writes to the console.
func newConsoleCore() zapcore.Core {
	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.DebugLevel
	})

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		levelEnabler,
	)
}
