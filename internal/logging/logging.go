// Package logging wraps zap in the event/field-chaining shape the core uses
// for structured warnings and errors (decoder drops, cache misses, apply-path
// skips), so call sites read as a sentence rather than a format string.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where logs go and how verbose they are.
type Config struct {
	Level      string // "debug", "info", "warn", "error"
	FilePath   string // empty = stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a *zap.Logger from Config. An empty FilePath logs to stderr
// only; a non-empty one additionally writes through a rotating file sink.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Event starts a structured log entry. Field chains additional key/value
// pairs; a terminal call (Debug/Warn/Error) flushes the entry through the
// supplied logger.
type Builder struct {
	event  string
	fields []zap.Field
}

// Event begins a new structured builder for the named event type, e.g.
// "mysql_binlog_warning".
func Event(event string) *Builder {
	return &Builder{event: event}
}

// Field appends a key/value pair to the entry.
func (b *Builder) Field(key string, value any) *Builder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

// Debug flushes the entry at debug level.
func (b *Builder) Debug(log *zap.Logger) {
	log.Debug(b.event, b.fields...)
}

// Warn flushes the entry at warn level.
func (b *Builder) Warn(log *zap.Logger) {
	log.Warn(b.event, b.fields...)
}

// Error flushes the entry at error level.
func (b *Builder) Error(log *zap.Logger) {
	log.Error(b.event, b.fields...)
}

// Info flushes the entry at info level.
func (b *Builder) Info(log *zap.Logger) {
	log.Info(b.event, b.fields...)
}
