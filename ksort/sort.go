// Package ksort provides the node-local key sort: merge sort over fixed-width
// unsigned keys, checksums, and shard generation.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package ksort

import (
	"golang.org/x/sync/errgroup"
)

// below this length the parallel sort does not fork
const minParallelLen = 64 * 1024

// Sort sorts keys in place (ascending) using recursive merge sort.
func Sort(keys []uint32) {
	if len(keys) < 2 {
		return
	}
	scratch := make([]uint32, len(keys))
	mergeSort(keys, scratch)
}

// SortParallel is Sort that forks the top `depth` levels of recursion into
// separate goroutines; depth <= 0 is the same as Sort.
func SortParallel(keys []uint32, depth int) {
	if len(keys) < 2 {
		return
	}
	scratch := make([]uint32, len(keys))
	parMergeSort(keys, scratch, depth)
}

func parMergeSort(keys, scratch []uint32, depth int) {
	if depth <= 0 || len(keys) < minParallelLen {
		mergeSort(keys, scratch)
		return
	}
	var (
		mid = len(keys) / 2
		wg  errgroup.Group
	)
	wg.Go(func() error {
		parMergeSort(keys[:mid], scratch[:mid], depth-1)
		return nil
	})
	parMergeSort(keys[mid:], scratch[mid:], depth-1)
	wg.Wait()
	merge(keys, scratch, mid)
}

// split at midpoint, recurse, merge
func mergeSort(keys, scratch []uint32) {
	n := len(keys)
	if n < 2 {
		return
	}
	mid := n / 2
	mergeSort(keys[:mid], scratch[:mid])
	mergeSort(keys[mid:], scratch[mid:])
	merge(keys, scratch, mid)
}

// merge two sorted halves keys[:mid] and keys[mid:] via scratch;
// on equal keys the left half goes first
func merge(keys, scratch []uint32, mid int) {
	if keys[mid-1] <= keys[mid] {
		return // already in order
	}
	copy(scratch, keys)
	var (
		left, right = scratch[:mid], scratch[mid:]
		i, j, k     int
	)
	for i < len(left) && j < len(right) {
		if right[j] < left[i] {
			keys[k] = right[j]
			j++
		} else {
			keys[k] = left[i]
			i++
		}
		k++
	}
	k += copy(keys[k:], left[i:])
	copy(keys[k:], right[j:])
}

// IsSorted returns true if keys are in non-decreasing order.
func IsSorted(keys []uint32) bool {
	for i := 1; i < len(keys); i++ {
		if keys[i] < keys[i-1] {
			return false
		}
	}
	return true
}
