//go:build !otel

package telemetry

import "github.com/spoonos-ai/spoonbot/internal/config"

// NewTracer creates a tracer. Without the otel build tag it is always a
// no-op, regardless of configuration.
func NewTracer(_ config.TelemetryConfig) (Tracer, error) {
	return &noopTracer{}, nil
}

type noopTracer struct{}

func (t *noopTracer) StartSessionSpan(_, _ string) SpanContext {
	return &noopSpan{}
}

func (t *noopTracer) StartModelSpan(_ SpanContext, _ string) SpanContext {
	return &noopSpan{}
}

func (t *noopTracer) StartToolSpan(_ SpanContext, _ string) SpanContext {
	return &noopSpan{}
}

func (t *noopTracer) EndSpan(_ SpanContext, _ map[string]any, _ error) {}

func (t *noopTracer) Shutdown() error { return nil }

type noopSpan struct{}

func (s *noopSpan) TraceID() string   { return "" }
func (s *noopSpan) SpanID() string    { return "" }
func (s *noopSpan) IsRecording() bool { return false }
