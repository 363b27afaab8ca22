package observability

import (
	"context"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/namegen/internal/platform/requestctx"
)

const defaultLogLevel = "info"

type loggerConfig struct {
	level       string
	development bool
}

// LoggerOption customises NewLogger.
type LoggerOption func(*loggerConfig)

// WithLevel overrides the LOG_LEVEL environment variable.
func WithLevel(level string) LoggerOption {
	return func(cfg *loggerConfig) {
		cfg.level = level
	}
}

// WithDevelopment switches to a human-readable console encoder.
func WithDevelopment(enabled bool) LoggerOption {
	return func(cfg *loggerConfig) {
		cfg.development = enabled
	}
}

// NewLogger constructs a zap logger. Production output is JSON with Cloud
// Logging field names; development output is colourised console text.
func NewLogger(opts ...LoggerOption) (*zap.Logger, error) {
	cfg := loggerConfig{level: os.Getenv("LOG_LEVEL")}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(cfg.level)))); err != nil || strings.TrimSpace(cfg.level) == "" {
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey:    "message",
		TimeKey:       "timestamp",
		LevelKey:      "severity",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
	}
	encoding := "json"
	if cfg.development {
		encoding = "console"
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zcfg := zap.Config{
		Level:             level,
		Development:       cfg.development,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return zcfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// EventLogger adapts zap to the event-style logger func that services accept.
// The request-scoped logger is preferred so events carry request fields; base
// is used outside of requests.
func EventLogger(base *zap.Logger) func(context.Context, string, map[string]any) {
	if base == nil {
		base = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for _, k := range keys {
			zFields = append(zFields, zap.Any(k, fields[k]))
		}

		if strings.HasSuffix(event, "_error") || strings.HasSuffix(event, ".fallback") {
			logger.Warn(event, zFields...)
			return
		}
		logger.Info(event, zFields...)
	}
}
