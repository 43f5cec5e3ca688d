// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"github.com/NVIDIA/hsort/ksort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Verify", func() {
	var (
		src     []uint32
		results []NodeResult
	)

	// two destinations: [1, 2, 3] and [4, 5, 6]
	BeforeEach(func() {
		src = []uint32{ksort.Checksum([]uint32{1, 4, 6}), ksort.Checksum([]uint32{2, 3, 5})}
		results = []NodeResult{
			{NID: uint32(DstID(2, 1)), Min: 4, Max: 6, Cksum: 15, Count: 3},
			{NID: uint32(DstID(2, 0)), Min: 1, Max: 3, Cksum: 6, Count: 3},
		}
	})

	It("should pass and order results by min value", func() {
		v := Verify(results, src, 3)
		Expect(v.Passed).To(BeTrue(), "%v", v.Errors)
		Expect(v.Results[0].NID).To(Equal(uint32(DstID(2, 0))))
		Expect(v.Results[1].NID).To(Equal(uint32(DstID(2, 1))))
	})

	It("should accept equal keys straddling a boundary", func() {
		results[1].Max, results[0].Min = 4, 4
		results[1].Cksum, results[0].Cksum = 7, 14
		v := Verify(results, src, 3)
		Expect(v.Passed).To(BeTrue(), "%v", v.Errors)
	})

	It("should detect overlapping partitions", func() {
		results[1].Max = 5
		Expect(Verify(results, src, 3).Passed).To(BeFalse())
	})

	It("should detect a partition order that differs from the assignment", func() {
		results[0].NID, results[1].NID = results[1].NID, results[0].NID
		Expect(Verify(results, src, 3).Passed).To(BeFalse())
	})

	It("should detect unbalanced partitions", func() {
		results[0].Count = 4
		Expect(Verify(results, src, 3).Passed).To(BeFalse())
	})

	It("should detect lost or duplicated keys", func() {
		results[0].Cksum++
		v := Verify(results, src, 3)
		Expect(v.Passed).To(BeFalse())
		Expect(v.Errors).To(HaveLen(1))
	})

	It("should detect missing results", func() {
		Expect(Verify(results[:1], src, 3).Passed).To(BeFalse())
	})

	It("should treat empty partitions as ordered", func() {
		empty := []NodeResult{
			{NID: uint32(DstID(2, 1)), Cksum: ksort.EmptyChecksum},
			{NID: uint32(DstID(2, 0)), Cksum: ksort.EmptyChecksum},
		}
		v := Verify(empty, []uint32{ksort.EmptyChecksum, ksort.EmptyChecksum}, 0)
		Expect(v.Passed).To(BeTrue(), "%v", v.Errors)
	})
})
