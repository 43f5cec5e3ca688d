// Package mono provides low-level monotonic time
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// Since returns the elapsed time since the given monotonic timestamp.
func Since(started int64) time.Duration { return time.Duration(NanoTime() - started) }
