// Package telemetry traces agent activity with OpenTelemetry. The real
// exporter is compiled in with the 'otel' build tag; default builds get a
// no-op tracer so the rest of the app can call it unconditionally.
package telemetry

import (
	"context"

	"github.com/spoonos-ai/spoonbot/pkg/model"
	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

// Tracer records spans for message processing, model calls, and tool runs.
// Implementations are swapped by build tag.
type Tracer interface {
	// StartSessionSpan opens the root span for one inbound message.
	StartSessionSpan(sessionKey, messageID string) SpanContext

	// StartModelSpan opens a child span for a model call.
	StartModelSpan(parent SpanContext, modelName string) SpanContext

	// StartToolSpan opens a child span for a tool execution.
	StartToolSpan(parent SpanContext, toolName string) SpanContext

	// EndSpan completes a span, attaching attributes and the outcome.
	EndSpan(span SpanContext, attrs map[string]any, err error)

	// Shutdown flushes pending spans.
	Shutdown() error
}

// SpanContext identifies an open span.
type SpanContext interface {
	TraceID() string
	SpanID() string
	IsRecording() bool
}

type spanCtxKey struct{}

// ContextWithSpan stashes a span in ctx so spans opened further down the
// call chain become its children.
func ContextWithSpan(ctx context.Context, span SpanContext) context.Context {
	return context.WithValue(ctx, spanCtxKey{}, span)
}

// SpanFromContext returns the span stored by ContextWithSpan, or nil.
func SpanFromContext(ctx context.Context) SpanContext {
	span, _ := ctx.Value(spanCtxKey{}).(SpanContext)
	return span
}

// tracedModel decorates a Model so every Chat call gets its own span.
type tracedModel struct {
	model.Model
	tracer Tracer
	name   string
}

// WrapModel returns m with per-call tracing attached. A nil tracer returns
// m unchanged.
func WrapModel(t Tracer, m model.Model, name string) model.Model {
	if t == nil {
		return m
	}
	return &tracedModel{Model: m, tracer: t, name: name}
}

func (tm *tracedModel) Chat(ctx context.Context, req *model.Request) (*model.Response, error) {
	span := tm.tracer.StartModelSpan(SpanFromContext(ctx), tm.name)
	resp, err := tm.Model.Chat(ctx, req)

	attrs := map[string]any{"model.messages": len(req.Messages)}
	if resp != nil {
		attrs["model.input_tokens"] = resp.Usage.InputTokens
		attrs["model.output_tokens"] = resp.Usage.OutputTokens
		attrs["model.stop_reason"] = resp.StopReason
		attrs["model.tool_calls"] = len(resp.ToolCalls)
	}
	tm.tracer.EndSpan(span, attrs, err)
	return resp, err
}

// tracedTool decorates a Tool so every execution gets its own span.
type tracedTool struct {
	tool.Tool
	tracer Tracer
}

// WrapTool returns tl with per-execution tracing attached. A nil tracer
// returns tl unchanged.
func WrapTool(t Tracer, tl tool.Tool) tool.Tool {
	if t == nil {
		return tl
	}
	return &tracedTool{Tool: tl, tracer: t}
}

func (tt *tracedTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	span := tt.tracer.StartToolSpan(SpanFromContext(ctx), tt.Tool.Name())
	out, err := tt.Tool.Execute(ctx, args)
	tt.tracer.EndSpan(span, map[string]any{"tool.output_bytes": len(out)}, err)
	return out, err
}
