// Package tracing wires OpenTelemetry spans for job runs and harvest requests
// into the process logger.
package tracing

import (
	"context"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultServiceName is used when no service name is configured.
const DefaultServiceName = "krikri"

// LogExporter writes finished spans to a slog logger.
type LogExporter struct {
	logger *slog.Logger
	level  slog.Level
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter creates an exporter that logs each span at level.
func NewLogExporter(logger *slog.Logger, level slog.Level) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger, level: level}
}

// ExportSpans logs each span. It never fails the trace pipeline.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		traceID := sc.TraceID()
		spanID := sc.SpanID()

		args := []any{
			"span", span.Name(),
			"trace_id", hex.EncodeToString(traceID[:]),
			"span_id", hex.EncodeToString(spanID[:]),
			"duration", span.EndTime().Sub(span.StartTime()),
		}
		if span.Parent().IsValid() {
			parentID := span.Parent().SpanID()
			args = append(args, "parent_span_id", hex.EncodeToString(parentID[:]))
		}
		for _, attr := range span.Attributes() {
			args = append(args, string(attr.Key), attributeValue(attr))
		}

		level := e.level
		if span.Status().Code == codes.Error {
			level = slog.LevelWarn
			args = append(args, "status", span.Status().Description)
		}
		e.logger.Log(ctx, level, "span finished", args...)
	}
	return nil
}

// Shutdown is a no-op; the logger outlives the exporter.
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}

func attributeValue(attr attribute.KeyValue) any {
	switch attr.Value.Type() {
	case attribute.BOOL:
		return attr.Value.AsBool()
	case attribute.INT64:
		return attr.Value.AsInt64()
	case attribute.FLOAT64:
		return attr.Value.AsFloat64()
	default:
		return attr.Value.Emit()
	}
}

// NewProvider creates a TracerProvider that exports every span through
// exporter as soon as it ends.
func NewProvider(serviceName string, exporter sdktrace.SpanExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
}

// Install registers a log-exporting provider as the global TracerProvider
// and returns its shutdown function.
func Install(serviceName string, logger *slog.Logger) func(context.Context) error {
	tp := NewProvider(serviceName, NewLogExporter(logger, slog.LevelDebug), logger)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
