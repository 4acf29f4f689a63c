// Package logging builds the structured logger used for diagnostics.
// Human-facing progress and summaries still go straight to stderr.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON logger at warn level, or a console logger at
// debug level when verbose is set. Progress already goes to stderr, so the
// quiet logger only reports problems.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// WithOperation enriches the logger with operation and session identifiers.
func WithOperation(logger *zap.Logger, operation, sessionID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if sessionID != "" {
		fields = append(fields, zap.String("session_id", sessionID))
	}
	return logger.With(fields...)
}
