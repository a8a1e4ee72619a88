package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/synapse/internal/core/ports"
)

var _ sdktrace.SpanProcessor = (*Bridge)(nil)

// Bridge implements sdktrace.SpanProcessor to forward unit spans to a Renderer.
// Only spans carrying a file attribute are forwarded.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a new Bridge.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{
		renderer: renderer,
	}
}

func lookup(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// OnStart is called when a span starts.
func (b *Bridge) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}
	file, ok := lookup(s.Attributes(), AttrFile)
	if !ok {
		return
	}
	b.renderer.OnUnitStart(sc.SpanID().String(), file.AsString(), s.StartTime())
}

// OnEnd is called when a span ends.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}
	attrs := s.Attributes()
	if _, ok := lookup(attrs, AttrFile); !ok {
		return
	}

	var err error
	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "compile failed"
		}
		err = errors.New(desc)
	}
	cached, _ := lookup(attrs, AttrCached)
	b.renderer.OnUnitComplete(sc.SpanID().String(), s.EndTime(), err, cached.AsBool())
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}
