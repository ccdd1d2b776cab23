//go:build otel

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/spoonos-ai/spoonbot/internal/config"
)

// NewTracer creates an OpenTelemetry tracer exporting OTLP over HTTP.
// Compiled in with the 'otel' build tag; a disabled config still gets a
// no-op tracer so callers never branch.
func NewTracer(cfg config.TelemetryConfig) (Tracer, error) {
	if !cfg.Enabled {
		return &disabledTracer{}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "spoonbot"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 1.0
	}

	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)

	return &otelTracer{
		provider: provider,
		tracer:   provider.Tracer("spoonbot"),
	}, nil
}

type otelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

func (t *otelTracer) StartSessionSpan(sessionKey, messageID string) SpanContext {
	ctx, span := t.tracer.Start(context.Background(), "session.process",
		trace.WithAttributes(
			attribute.String("session.key", sessionKey),
			attribute.String("message.id", messageID),
		),
	)
	return &otelSpan{ctx: ctx, span: span}
}

func (t *otelTracer) StartModelSpan(parent SpanContext, modelName string) SpanContext {
	ctx, span := t.tracer.Start(parentCtx(parent), "model.chat",
		trace.WithAttributes(
			attribute.String("model.name", modelName),
		),
	)
	return &otelSpan{ctx: ctx, span: span}
}

func (t *otelTracer) StartToolSpan(parent SpanContext, toolName string) SpanContext {
	ctx, span := t.tracer.Start(parentCtx(parent), "tool.execute",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
		),
	)
	return &otelSpan{ctx: ctx, span: span}
}

func parentCtx(parent SpanContext) context.Context {
	if ps, ok := parent.(*otelSpan); ok && ps != nil {
		return ps.ctx
	}
	return context.Background()
}

func (t *otelTracer) EndSpan(span SpanContext, attrs map[string]any, err error) {
	os, ok := span.(*otelSpan)
	if !ok || os == nil {
		return
	}

	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			os.span.SetAttributes(attribute.String(k, val))
		case int:
			os.span.SetAttributes(attribute.Int(k, val))
		case int64:
			os.span.SetAttributes(attribute.Int64(k, val))
		case float64:
			os.span.SetAttributes(attribute.Float64(k, val))
		case bool:
			os.span.SetAttributes(attribute.Bool(k, val))
		}
	}

	if err != nil {
		os.span.RecordError(err)
		os.span.SetStatus(codes.Error, err.Error())
	} else {
		os.span.SetStatus(codes.Ok, "")
	}

	os.span.End()
}

func (t *otelTracer) Shutdown() error {
	if t.provider != nil {
		return t.provider.Shutdown(context.Background())
	}
	return nil
}

type otelSpan struct {
	ctx  context.Context
	span trace.Span
}

func (s *otelSpan) TraceID() string {
	return s.span.SpanContext().TraceID().String()
}

func (s *otelSpan) SpanID() string {
	return s.span.SpanContext().SpanID().String()
}

func (s *otelSpan) IsRecording() bool {
	return s.span.IsRecording()
}

// disabledTracer is used when OTEL is compiled in but disabled at runtime.
type disabledTracer struct{}

func (t *disabledTracer) StartSessionSpan(_, _ string) SpanContext {
	return &disabledSpan{}
}

func (t *disabledTracer) StartModelSpan(_ SpanContext, _ string) SpanContext {
	return &disabledSpan{}
}

func (t *disabledTracer) StartToolSpan(_ SpanContext, _ string) SpanContext {
	return &disabledSpan{}
}

func (t *disabledTracer) EndSpan(_ SpanContext, _ map[string]any, _ error) {}

func (t *disabledTracer) Shutdown() error { return nil }

type disabledSpan struct{}

func (s *disabledSpan) TraceID() string   { return "" }
func (s *disabledSpan) SpanID() string    { return "" }
func (s *disabledSpan) IsRecording() bool { return false }
