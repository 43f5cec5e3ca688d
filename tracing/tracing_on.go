//go:build oteltracing

// Package tracing offers support for distributed tracing utilizing OpenTelemetry (OTEL).
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package tracing

import (
	"context"
	"errors"

	"github.com/NVIDIA/hsort/cmn"
	"github.com/NVIDIA/hsort/cmn/nlog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const serviceName = "hsort"

var tp *trace.TracerProvider

// (can be swapped in tests)
var newExporter = func(conf *cmn.TracingConf) (trace.SpanExporter, error) {
	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(conf.ExporterEndpoint),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{Enabled: true}),
	}
	if conf.SkipVerify {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(context.Background(), options...)
}

// newResource returns a resource describing this run.
func newResource(runID, version string) *resource.Resource {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("version", version),
		attribute.String("run", runID),
	}
	r, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		nlog.Warningln("tracing resource:", err)
	}
	return r
}

func IsEnabled() bool { return tp != nil }

func Init(conf *cmn.TracingConf, runID, version string) error {
	if conf == nil || !conf.Enabled {
		return nil
	}
	if conf.ExporterEndpoint == "" {
		return errors.New("tracing: exporter endpoint can't be empty")
	}
	exp, err := newExporter(conf)
	if err != nil {
		return err
	}
	tp = trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(conf.SamplerProbability))),
		trace.WithBatcher(exp),
		trace.WithResource(newResource(runID, version)),
	)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	otel.SetTracerProvider(tp)
	return nil
}

func Shutdown() {
	if tp == nil {
		return
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		nlog.Errorln("tracing shutdown:", err)
	}
	tp = nil
}

// StartSpan starts a child span of whatever span ctx carries; call the returned func to end it.
func StartSpan(ctx context.Context, name string, attrs ...Attr) (context.Context, func()) {
	if tp == nil {
		return ctx, func() {}
	}
	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = attribute.String(a.Key, a.Value)
	}
	ctx, span := tp.Tracer(serviceName).Start(ctx, name, oteltrace.WithAttributes(kvs...))
	return ctx, func() { span.End() }
}
