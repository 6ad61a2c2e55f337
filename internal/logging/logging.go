package logging

import (
	"os"

	"okx-spread-bot/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func New(cfg config.LogConfig) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level, zapcore.InfoLevel))
	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func ParseLevel(level string, fallback zapcore.Level) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return fallback
	}
}

// levelWindow admits entries whose severity falls inside [min, max]. Feed
// channels use it to cap log volume from both ends: a feed can be told to
// emit only warnings, or everything up to info but not errors.
type levelWindow struct {
	min zapcore.Level
	max zapcore.Level
}

func (w levelWindow) Enabled(level zapcore.Level) bool {
	return level >= w.min && level <= w.max
}

// NewFeed builds the logger for one streaming channel. Disabled feeds get a
// nop logger so call sites stay unconditional.
func NewFeed(cfg config.FeedLogConfig) *zap.Logger {
	if !cfg.Enabled {
		return zap.NewNop()
	}
	window := levelWindow{
		min: ParseLevel(cfg.MinLevel, zapcore.InfoLevel),
		max: ParseLevel(cfg.MaxLevel, zapcore.ErrorLevel),
	}
	if window.max < window.min {
		window.max = window.min
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}
	if cfg.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     14,
		}))
	}
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), window)
	return zap.New(core)
}
