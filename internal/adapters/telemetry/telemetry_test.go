package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/synapse/internal/adapters/telemetry"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func setupRecorder(t *testing.T, processors ...sdktrace.SpanProcessor) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(sr)}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func TestOTelTracer_StartAttributes(t *testing.T) {
	sr := setupRecorder(t)
	tracer := telemetry.NewOTelTracer("test")

	_, span := tracer.Start(context.Background(), "unit",
		ports.WithAttribute(telemetry.AttrFile, "src/a.ts"),
		ports.WithAttribute(telemetry.AttrLayer, 2),
	)
	span.SetAttribute(telemetry.AttrCached, true)
	span.SetAttribute("synapse.names", []string{"a", "b"})
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, attribute.String(telemetry.AttrFile, "src/a.ts"))
	assert.Contains(t, attrs, attribute.Int(telemetry.AttrLayer, 2))
	assert.Contains(t, attrs, attribute.Bool(telemetry.AttrCached, true))
	assert.Contains(t, attrs, attribute.StringSlice("synapse.names", []string{"a", "b"}))
}

func TestOTelTracer_RecordError(t *testing.T) {
	sr := setupRecorder(t)
	tracer := telemetry.NewOTelTracer("test")

	_, span := tracer.Start(context.Background(), "unit")
	span.RecordError(errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "boom", spans[0].Status().Description)
	var names []string
	for _, e := range spans[0].Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"exception"}, names)
}

func TestOTelTracer_EmitPlan(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	sr := setupRecorder(t)
	tracer := telemetry.NewOTelTracer("test").WithRenderer(renderer)

	layers := [][]string{{"src/b.ts"}, {"src/a.ts"}}
	renderer.EXPECT().OnPlanEmit(layers)

	ctx, root := tracer.Start(context.Background(), "compile")
	tracer.EmitPlan(ctx, layers)
	root.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "plan_emitted", events[0].Name)
}

func TestBridge_ForwardsUnitSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	setupRecorder(t, telemetry.NewBridge(renderer))
	tracer := telemetry.NewOTelTracer("test")

	gomock.InOrder(
		renderer.EXPECT().OnUnitStart(gomock.Any(), "src/a.ts", gomock.Any()),
		renderer.EXPECT().OnUnitComplete(gomock.Any(), gomock.Any(), nil, true),
	)

	ctx, layer := tracer.Start(context.Background(), "layer 0", ports.WithAttribute(telemetry.AttrLayer, 0))
	_, unit := tracer.Start(ctx, "src/a.ts", ports.WithAttribute(telemetry.AttrFile, "src/a.ts"))
	unit.SetAttribute(telemetry.AttrCached, true)
	unit.End()
	layer.End()
}

func TestBridge_ForwardsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	setupRecorder(t, telemetry.NewBridge(renderer))
	tracer := telemetry.NewOTelTracer("test")

	renderer.EXPECT().OnUnitStart(gomock.Any(), "src/a.ts", gomock.Any())
	renderer.EXPECT().OnUnitComplete(gomock.Any(), gomock.Any(), gomock.Not(gomock.Nil()), false).
		Do(func(_ string, _ time.Time, err error, _ bool) {
			assert.EqualError(t, err, "syntax error")
		})

	_, unit := tracer.Start(context.Background(), "src/a.ts", ports.WithAttribute(telemetry.AttrFile, "src/a.ts"))
	unit.RecordError(errors.New("syntax error"))
	unit.End()
}

func TestBridge_NilRenderer(_ *testing.T) {
	bridge := telemetry.NewBridge(nil)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	_, span := tp.Tracer("test").Start(context.Background(), "span")
	span.End()
	_ = bridge.ForceFlush(context.Background())
	_ = bridge.Shutdown(context.Background())
}

func TestNoOpTracer(t *testing.T) {
	t.Parallel()

	tracer := telemetry.NewNoOpTracer()
	ctx := context.Background()
	newCtx, span := tracer.Start(ctx, "span", ports.WithAttribute("k", "v"))
	assert.Equal(t, ctx, newCtx)

	span.SetAttribute("k", 1)
	span.RecordError(errors.New("ignored"))
	span.End()
	tracer.EmitPlan(ctx, [][]string{{"a"}})
}
