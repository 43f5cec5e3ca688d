//go:build oteltracing

// Package tracing offers support for distributed tracing utilizing OpenTelemetry (OTEL).
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package tracing

import (
	"context"

	"github.com/NVIDIA/hsort/cmn"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ = Describe("Tracing", func() {
	var (
		exporter     *tracetest.InMemoryExporter
		origExporter = newExporter
	)

	BeforeEach(func() {
		exporter = tracetest.NewInMemoryExporter()
		newExporter = func(*cmn.TracingConf) (trace.SpanExporter, error) {
			return exporter, nil
		}
	})

	AfterEach(func() {
		Shutdown()
		newExporter = origExporter
	})

	It("should not enable tracing when disabled in config", func() {
		Expect(Init(&cmn.TracingConf{}, "run", "v1")).To(Succeed())
		Expect(IsEnabled()).To(BeFalse())
	})

	It("should reject an empty exporter endpoint", func() {
		Expect(Init(&cmn.TracingConf{Enabled: true}, "run", "v1")).NotTo(Succeed())
	})

	It("should export phase spans with attributes", func() {
		Expect(Init(&cmn.TracingConf{
			ExporterEndpoint:   "dummy",
			Enabled:            true,
			SamplerProbability: 1.0,
		}, "run-1", "v1")).To(Succeed())
		Expect(IsEnabled()).To(BeTrue())

		ctx, endRun := StartSpan(context.Background(), "run")
		_, endPhase := StartSpan(ctx, "resolution", Int("destinations", 5))
		endPhase()
		endRun()
		Expect(tp.ForceFlush(context.Background())).To(Succeed())

		spans := exporter.GetSpans()
		Expect(spans).To(HaveLen(2))
		Expect(spans[0].Name).To(Equal("resolution"))
		Expect(spans[0].Parent.SpanID()).To(Equal(spans[1].SpanContext.SpanID()))

		var found bool
		for _, kv := range spans[0].Attributes {
			if string(kv.Key) == "destinations" {
				found = kv.Value.AsString() == "5"
			}
		}
		Expect(found).To(BeTrue())
	})
})
