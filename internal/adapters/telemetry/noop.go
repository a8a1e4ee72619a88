package telemetry

import (
	"context"

	"go.trai.ch/synapse/internal/core/ports"
)

var (
	_ ports.Tracer = NoOpTracer{}
	_ ports.Span   = noopSpan{}
)

// NoOpTracer records nothing. Library callers and tests use it when no
// renderer is attached.
type NoOpTracer struct{}

// NewNoOpTracer returns a NoOpTracer.
func NewNoOpTracer() NoOpTracer { return NoOpTracer{} }

// Start returns ctx unchanged with a span that ignores every call.
func (NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

// EmitPlan is a no-op.
func (NoOpTracer) EmitPlan(context.Context, [][]string) {}

type noopSpan struct{}

func (noopSpan) End()                     {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) SetAttribute(string, any) {}
