//go:build !otel

package telemetry

import (
	"testing"

	"github.com/spoonos-ai/spoonbot/internal/config"
)

func TestNoopTracer(t *testing.T) {
	// Even an enabled config gets a no-op without the otel build tag.
	tracer, err := NewTracer(config.TelemetryConfig{Enabled: true})
	if err != nil {
		t.Fatalf("new tracer: %v", err)
	}

	span := tracer.StartSessionSpan("cli:default", "msg-1")
	if span.IsRecording() {
		t.Error("noop span should not be recording")
	}
	if span.TraceID() != "" || span.SpanID() != "" {
		t.Error("noop span should have empty IDs")
	}

	child := tracer.StartToolSpan(span, "shell")
	tracer.EndSpan(child, map[string]any{"k": "v"}, nil)
	tracer.EndSpan(span, nil, nil)

	if err := tracer.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
