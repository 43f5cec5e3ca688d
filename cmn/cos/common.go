// Package cos provides common low-level types and utilities for all hsort packages.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import "os"

const (
	SizeofI64 = 8
	SizeofI32 = 4
)

const (
	PermRWR   os.FileMode = 0o640
	PermRWXRX os.FileMode = 0o750
)

// Plural returns "s" when n != 1.
func Plural(n int) (s string) {
	if n != 1 {
		s = "s"
	}
	return
}
