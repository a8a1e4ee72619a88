// Package telemetry adapts OpenTelemetry to ports.Tracer and forwards unit
// spans to the renderer.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/synapse/internal/core/ports"
)

// Span attribute keys shared by the app and the bridge.
const (
	AttrFile   = "synapse.file"
	AttrCached = "synapse.cached"
	AttrLayer  = "synapse.layer"
	AttrRunID  = "synapse.run_id"
)

// OTelTracer is a concrete implementation of ports.Tracer using OpenTelemetry.
type OTelTracer struct {
	tracer   trace.Tracer
	mu       sync.RWMutex
	renderer ports.Renderer
}

// NewOTelTracer creates a new OTelTracer with the given instrumentation name.
func NewOTelTracer(name string) *OTelTracer {
	return &OTelTracer{
		tracer: otel.Tracer(name),
	}
}

// WithRenderer sets the renderer that receives the execution plan.
func (t *OTelTracer) WithRenderer(r ports.Renderer) *OTelTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderer = r
	return t
}

// Start creates a new span. Attributes passed as options are set before span
// processors see the span.
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var startOpts []trace.SpanStartOption
	if len(cfg.Attributes) > 0 {
		attrs := make([]attribute.KeyValue, 0, len(cfg.Attributes))
		for k, v := range cfg.Attributes {
			attrs = append(attrs, toAttribute(k, v))
		}
		startOpts = append(startOpts, trace.WithAttributes(attrs...))
	}

	ctx, span := t.tracer.Start(ctx, name, startOpts...)
	return ctx, &OTelSpan{span: span}
}

// EmitPlan records the layered plan on the current span and hands it to the renderer.
func (t *OTelTracer) EmitPlan(ctx context.Context, layers [][]string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		attrs := make([]attribute.KeyValue, 0, len(layers))
		for i, l := range layers {
			attrs = append(attrs, attribute.StringSlice(fmt.Sprintf("layer.%d", i), l))
		}
		span.AddEvent("plan_emitted", trace.WithAttributes(attrs...))
	}

	t.mu.RLock()
	r := t.renderer
	t.mu.RUnlock()
	if r != nil {
		r.OnPlanEmit(layers)
	}
}

// OTelSpan is a concrete implementation of ports.Span using OpenTelemetry.
type OTelSpan struct {
	span trace.Span
}

// End completes the span.
func (s *OTelSpan) End() {
	s.span.End()
}

// RecordError records an error for the span.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Setup installs a global TracerProvider whose only processor is a Bridge to
// renderer. The returned function shuts the provider down.
func Setup(renderer ports.Renderer) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewBridge(renderer)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
