//go:build !oteltracing

// Package tracing offers support for distributed tracing utilizing OpenTelemetry (OTEL).
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package tracing

import (
	"context"

	"github.com/NVIDIA/hsort/cmn"
)

func IsEnabled() bool { return false }

func Init(*cmn.TracingConf, string, string) error { return nil }

func Shutdown() {}

func StartSpan(ctx context.Context, _ string, _ ...Attr) (context.Context, func()) {
	return ctx, func() {}
}
