//go:build !mono

// Package mono provides low-level monotonic time
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var base = time.Now()

// NanoTime returns nanoseconds elapsed since process start (monotonic).
func NanoTime() int64 { return int64(time.Since(base)) }
