// Package tracing offers support for distributed tracing utilizing OpenTelemetry (OTEL).
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package tracing

import "strconv"

// span attribute (string-valued)
type Attr struct {
	Key   string
	Value string
}

func String(k, v string) Attr  { return Attr{Key: k, Value: v} }
func Int(k string, v int) Attr { return Attr{Key: k, Value: strconv.Itoa(v)} }
