// Package logging provides the structured logger used across the core.
//
// The shape mirrors github.com/saferwall/pe/log as consumed from file.go:
// a Helper that exposes level-tagged printf-style methods (Debugf, Infof,
// Warnf, Errorf). Here it is backed by
// go.uber.org/zap instead of a hand-rolled writer.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a log severity, ordered low to high.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a config/env string ("debug", "info", "warn", "error")
// to a Level, defaulting to LevelInfo on anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Helper is the logging facade every component holds, the way pe.File
// holds a *log.Helper. Components never touch zap directly.
type Helper struct {
	sugar *zap.SugaredLogger
	with  []interface{}
}

// NewHelper builds a Helper writing JSON lines to stderr at the given
// minimum level.
func NewHelper(minLevel Level) *Helper {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.Lock(os.Stderr),
		minLevel.zapLevel(),
	)
	logger := zap.New(core)
	return &Helper{sugar: logger.Sugar()}
}

// NewNop returns a Helper that discards everything, for tests.
func NewNop() *Helper {
	return &Helper{sugar: zap.NewNop().Sugar()}
}

// With returns a derived Helper carrying additional key/value context,
// e.g. h.With("artifact_id", id).
func (h *Helper) With(kv ...interface{}) *Helper {
	return &Helper{sugar: h.sugar.With(kv...), with: append(append([]interface{}{}, h.with...), kv...)}
}

func (h *Helper) Debugf(format string, args ...interface{}) { h.sugar.Debugf(format, args...) }
func (h *Helper) Infof(format string, args ...interface{})  { h.sugar.Infof(format, args...) }
func (h *Helper) Warnf(format string, args ...interface{})  { h.sugar.Warnf(format, args...) }
func (h *Helper) Errorf(format string, args ...interface{}) { h.sugar.Errorf(format, args...) }

// Sync flushes buffered log entries; callers should defer it in main.
func (h *Helper) Sync() error { return h.sugar.Sync() }
