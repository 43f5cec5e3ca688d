// Package ksort provides the node-local key sort: merge sort over fixed-width
// unsigned keys, checksums, and shard generation.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package ksort

import "math/rand/v2"

// Generate returns n pseudo-random keys; the same seed yields the same shard.
func Generate(seed int64, n int64) []uint32 {
	var (
		rnd  = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
		keys = make([]uint32, n)
	)
	for i := range keys {
		keys[i] = rnd.Uint32()
	}
	return keys
}

// Seq returns keys first, first+step, ... (n keys); helper for reproducible layouts.
func Seq(first, step uint32, n int) []uint32 {
	keys := make([]uint32, n)
	for i := range keys {
		keys[i] = first + uint32(i)*step
	}
	return keys
}
