// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"fmt"
	"slices"

	"github.com/NVIDIA/hsort/ksort"
)

// Verification is the coordinator's end-to-end check of the destination results.
type Verification struct {
	Results []NodeResult `json:"results"` // ordered by min value
	Errors  []string     `json:"errors,omitempty"`
	Passed  bool         `json:"passed"`
}

// Verify checks the destination results:
//   - every destination reported exactly target keys;
//   - ordered by min value, adjacent partitions do not overlap (max <= next min:
//     equal keys may straddle a boundary);
//   - the min-value order is the destination-assignment order;
//   - source and destination checksums add up to the same value.
func Verify(results []NodeResult, srcCksums []uint32, target int64) *Verification {
	var (
		n = len(srcCksums)
		v = &Verification{Results: slices.Clone(results)}
	)
	if len(results) != n {
		v.addf("expected %d results, got %d", n, len(results))
	}
	slices.SortStableFunc(v.Results, func(a, b NodeResult) int {
		switch {
		case a.Min < b.Min:
			return -1
		case a.Min > b.Min:
			return 1
		case a.NID < b.NID:
			return -1
		case a.NID > b.NID:
			return 1
		}
		return 0
	})
	dstCksums := make([]uint32, 0, len(v.Results))
	for i := range v.Results {
		r := &v.Results[i]
		if r.Count != target {
			v.addf("node %d: count %d, expected %d", r.NID, r.Count, target)
		}
		if r.Count > 0 && r.Min > r.Max {
			v.addf("node %d: min %d > max %d", r.NID, r.Min, r.Max)
		}
		if expected := uint32(DstID(n, i)); r.NID != expected {
			v.addf("position %d (min %d): node %d, expected %d", i, r.Min, r.NID, expected)
		}
		if i > 0 && target > 0 {
			if prev := &v.Results[i-1]; prev.Max > r.Min {
				v.addf("nodes %d and %d overlap: max %d > min %d", prev.NID, r.NID, prev.Max, r.Min)
			}
		}
		dstCksums = append(dstCksums, r.Cksum)
	}
	src, dst := ksort.CombineChecksums(srcCksums...), ksort.CombineChecksums(dstCksums...)
	if src != dst {
		v.addf("checksum mismatch: sources %d, destinations %d", src, dst)
	}
	v.Passed = len(v.Errors) == 0
	return v
}

func (v *Verification) addf(format string, a ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, a...))
}
