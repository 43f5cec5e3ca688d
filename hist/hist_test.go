// Package hist builds strided summaries (histograms) of sorted key sequences.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package hist_test

import (
	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/ksort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Build", func() {
	DescribeTable("should cover the sequence contiguously",
		func(length, stride int64) {
			keys := ksort.Generate(length, length)
			ksort.Sort(keys)
			h := hist.Build(7, keys, 0, length, stride)

			Expect(h.SID).To(Equal(uint32(7)))
			Expect(int64(h.Len())).To(Equal((length + stride - 1) / stride))
			Expect(h.Validate(0, length)).To(Succeed())
			Expect(h.Span()).To(Equal(length))
			for _, e := range h.Entries {
				Expect(e.Value).To(Equal(keys[e.Start]))
				Expect(e.Len()).To(BeNumerically("<=", stride))
			}
		},
		Entry("empty", int64(0), int64(1000)),
		Entry("exact multiple", int64(6000), int64(1000)),
		Entry("short tail", int64(6001), int64(1000)),
		Entry("stride 1", int64(37), int64(1)),
		Entry("stride larger than sequence", int64(5), int64(1000)),
	)

	It("should produce a single [0,0] entry for a single key", func() {
		h := hist.Build(0, []uint32{42}, 0, 1, 1000)
		Expect(h.Entries).To(Equal([]hist.Entry{{Value: 42, Start: 0, Last: 0}}))
	})

	It("should honor the offset", func() {
		keys := ksort.Seq(10, 10, 20)
		h := hist.Build(1, keys, 5, 10, 4)
		Expect(h.Entries).To(Equal([]hist.Entry{
			{Value: 60, Start: 5, Last: 8},
			{Value: 100, Start: 9, Last: 12},
			{Value: 140, Start: 13, Last: 14},
		}))
		Expect(h.Validate(5, 10)).To(Succeed())
		Expect(h.Validate(0, 15)).NotTo(Succeed())
	})
})

var _ = Describe("Detail", func() {
	keys := ksort.Seq(1, 2, 6) // 1, 3, 5, 7, 9, 11

	It("should build item-exact entries", func() {
		h := hist.Detail(0, keys, 2, 4)
		Expect(h.Entries).To(Equal([]hist.Entry{
			{Value: 5, Start: 2, Last: 2},
			{Value: 7, Start: 3, Last: 3},
			{Value: 9, Start: 4, Last: 4},
		}))
	})

	It("should clip requests that exceed the bounds", func() {
		h := hist.Detail(0, keys, 4, 100)
		Expect(h.Len()).To(Equal(2))
		Expect(h.Validate(4, 2)).To(Succeed())

		h = hist.Detail(0, keys, -3, 0)
		Expect(h.Entries).To(Equal([]hist.Entry{{Value: 1, Start: 0, Last: 0}}))

		h = hist.Detail(0, keys, 6, 10)
		Expect(h.Len()).To(BeZero())

		h = hist.Detail(0, keys, 3, 2) // empty request
		Expect(h.Len()).To(BeZero())
	})
})

func ent(value uint32, start, last int64) hist.Entry {
	return hist.Entry{Value: value, Start: start, Last: last}
}

var _ = Describe("Validate", func() {
	It("should reject gaps, overlaps, and decreasing values", func() {
		gap := &hist.Histogram{Entries: []hist.Entry{ent(1, 0, 1), ent(2, 3, 4)}}
		Expect(gap.Validate(0, 5)).NotTo(Succeed())

		overlap := &hist.Histogram{Entries: []hist.Entry{ent(1, 0, 2), ent(2, 2, 4)}}
		Expect(overlap.Validate(0, 5)).NotTo(Succeed())

		decreasing := &hist.Histogram{Entries: []hist.Entry{ent(5, 0, 2), ent(2, 3, 4)}}
		Expect(decreasing.Validate(0, 5)).NotTo(Succeed())

		short := &hist.Histogram{Entries: []hist.Entry{ent(1, 0, 2)}}
		Expect(short.Validate(0, 5)).NotTo(Succeed())
	})
})
