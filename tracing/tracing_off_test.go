//go:build !oteltracing

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
)

var _ = Describe("Tracing (disabled build)", func() {
	It("should be a no-op", func() {
		Expect(Init(&cmn.TracingConf{Enabled: true, ExporterEndpoint: "dummy"}, "run", "v1")).To(Succeed())
		Expect(IsEnabled()).To(BeFalse())

		ctx := context.Background()
		spanCtx, end := StartSpan(ctx, "phase", String("k", "v"), Int("n", 1))
		Expect(spanCtx).To(Equal(ctx))
		end()
		Shutdown()
	})
})
