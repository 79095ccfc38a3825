package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is a no-op until Setup runs, so packages can log safely in tests.
var logger = zap.NewNop()

const (
	TraceIDKey = "traceid" // Key for trace ID in logs
	SpanIDKey  = "spanid"  // Key for span ID in logs
)

// Setup initializes the global logger.
func Setup() error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.LevelKey = "severity"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	var err error
	logger, err = cfg.Build()
	if err != nil {
		return err
	}
	return nil
}

// Field aliases so callers do not import zap directly.
var (
	String   = zap.String
	Int      = zap.Int
	Int32    = zap.Int32
	Err      = zap.Error
	Duration = zap.Duration
	Any      = zap.Any
)

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// traceFields extracts trace and span IDs from the OpenTelemetry span in
// ctx, when one is present.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return nil
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String(TraceIDKey, sc.TraceID().String()),
		zap.String(SpanIDKey, sc.SpanID().String()),
	}
}

// InfoCtx logs an info message with trace and span IDs from context.
func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Info(msg, append(fields, traceFields(ctx)...)...)
}

// WarnCtx logs a warning message with trace and span IDs from context.
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Warn(msg, append(fields, traceFields(ctx)...)...)
}

// ErrorCtx logs an error message with trace and span IDs from context.
func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	logger.Error(msg, append(fields, traceFields(ctx)...)...)
}
