package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewProvider builds a tracer provider, registers it globally, and wires the
// package tracer. The returned shutdown func flushes pending spans.
func NewProvider(serviceName string) func(context.Context) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	SetTracer(tp.Tracer(serviceName))
	return tp.Shutdown
}
