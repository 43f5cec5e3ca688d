//go:build mono

// Package mono provides low-level monotonic time
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import _ "unsafe"

// NanoTime reads the runtime clock directly (no time.Time construction).
// Values are only meaningful relative to each other.
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
