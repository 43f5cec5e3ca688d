// Package cos provides common low-level types and utilities for all hsort packages.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
)

const MLCG32 = 1103515245 // xxhash seed

const badDataCksumPrefix = "BAD DATA CHECKSUM:"

type ErrBadCksum struct {
	prefix  string
	a, b    uint64
	context string
}

func NewErrDataCksum(a, b uint64, context string) error {
	return &ErrBadCksum{prefix: badDataCksumPrefix, a: a, b: b, context: context}
}

func (e *ErrBadCksum) Error() string {
	s := fmt.Sprintf("%s %016x != %016x", e.prefix, e.a, e.b)
	if e.context != "" {
		s += " (" + e.context + ")"
	}
	return s
}

func IsErrBadCksum(err error) bool {
	_, ok := err.(*ErrBadCksum)
	return ok
}

// ChecksumB64 returns seeded xxhash-64 of the byte slice.
func ChecksumB64(b []byte) uint64 { return xxhash.Checksum64S(b, MLCG32) }
