// Package ksort provides the node-local key sort: merge sort over fixed-width
// unsigned keys, checksums, and shard generation.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package ksort

import "fmt"

const (
	CksumModulus = 1_000_000

	// checksum of an empty sequence; no real checksum can reach the modulus
	EmptyChecksum = CksumModulus
)

// Checksum returns the sum of all keys modulo CksumModulus; it is an order-independent
// equality probe for multisets (not a cryptographic one).
func Checksum(keys []uint32) uint32 {
	if len(keys) == 0 {
		return EmptyChecksum
	}
	var sum uint64
	for _, k := range keys {
		sum += uint64(k)
	}
	return uint32(sum % CksumModulus)
}

// CombineChecksums returns the checksum of the union of the multisets
// (empty ones contribute nothing).
func CombineChecksums(cksums ...uint32) uint32 {
	var (
		sum   uint64
		empty = true
	)
	for _, c := range cksums {
		if c == EmptyChecksum {
			continue
		}
		sum += uint64(c)
		empty = false
	}
	if empty {
		return EmptyChecksum
	}
	return uint32(sum % CksumModulus)
}

// SelfCheck validates a just-sorted sequence against the checksum of its unsorted view.
func SelfCheck(sorted []uint32, unsortedCksum uint32) error {
	if !IsSorted(sorted) {
		return fmt.Errorf("sequence of %d keys is not sorted", len(sorted))
	}
	if cksum := Checksum(sorted); cksum != unsortedCksum {
		return fmt.Errorf("checksum mismatch after sort: %d != %d", cksum, unsortedCksum)
	}
	return nil
}
