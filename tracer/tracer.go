// Package tracer wires up OpenTelemetry tracing for the proxy, using
// the stdout exporter so a single binary has useful local traces
// without standing up a collector.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/shoreline-labs/lb/logger"
)

const serviceName = "load-balancer"

// InitTracer installs a global TracerProvider backed by the stdout
// exporter and a W3C trace-context propagator, and returns a shutdown
// function the caller must invoke before exit.
func InitTracer() func(context.Context) error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Panic("tracer.Init", "failed to create stdout exporter: "+err.Error())
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		logger.Warn("tracer.Init", "failed to merge resource, using default", "error", err.Error())
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown
}
