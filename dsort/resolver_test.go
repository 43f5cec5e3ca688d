// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"errors"
	"sync"

	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/ksort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// records every scatter/gather round
type recFetcher struct {
	LocalFetcher
	rounds [][]DetailReq
	mu     sync.Mutex
}

func (f *recFetcher) FetchDetail(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
	f.mu.Lock()
	f.rounds = append(f.rounds, append([]DetailReq(nil), reqs...))
	f.mu.Unlock()
	return f.LocalFetcher.FetchDetail(ctx, reqs)
}

// n sorted shards; mod > 0 squeezes keys into [0, mod) to create duplicates
func sortedShards(seed int64, n int, length int64, mod uint32) [][]uint32 {
	shards := make([][]uint32, n)
	for i := range shards {
		keys := ksort.Generate(seed+int64(i), length)
		if mod > 0 {
			for j := range keys {
				keys[j] %= mod
			}
		}
		ksort.Sort(keys)
		shards[i] = keys
	}
	return shards
}

func coarseOf(shards [][]uint32, stride int64) []*hist.Histogram {
	coarse := make([]*hist.Histogram, len(shards))
	for i, keys := range shards {
		coarse[i] = hist.Build(uint32(i), keys, 0, int64(len(keys)), stride)
	}
	return coarse
}

// conservation, balance, and global order of the resolved ranges
func checkAssignment(shards [][]uint32, ranges [][]Range, numDst int) {
	var total int64
	for _, keys := range shards {
		total += int64(len(keys))
	}
	target := total / int64(numDst)

	Expect(ranges).To(HaveLen(len(shards)))
	for sid, rr := range ranges {
		Expect(rr).To(HaveLen(numDst))
		var next int64
		for did := range rr {
			r := &rr[did]
			Expect(r.SID).To(Equal(uint32(sid)))
			Expect(r.DID).To(Equal(uint32(did)))
			Expect(r.First).To(Equal(next), "source %d, destination %d", sid, did)
			Expect(r.Len()).To(BeNumerically(">=", 0))
			next = r.End()
		}
		Expect(next).To(Equal(int64(len(shards[sid]))), "conservation: source %d", sid)
	}

	var (
		prevMax uint32
		hasPrev bool
	)
	for did := range numDst {
		var (
			cnt      int64
			minV     uint32
			maxV     uint32
			nonEmpty bool
		)
		for sid := range ranges {
			r := &ranges[sid][did]
			cnt += r.Len()
			if r.Len() == 0 {
				continue
			}
			lo, hi := shards[sid][r.First], shards[sid][r.Last]
			if !nonEmpty || lo < minV {
				minV = lo
			}
			if !nonEmpty || hi > maxV {
				maxV = hi
			}
			nonEmpty = true
		}
		Expect(cnt).To(Equal(target), "balance: destination %d", did)
		if !nonEmpty {
			continue
		}
		if hasPrev {
			Expect(prevMax).To(BeNumerically("<=", minV), "global order: destination %d", did)
		}
		prevMax, hasPrev = maxV, true
	}
}

var _ = Describe("Resolve", func() {
	ctx := context.Background()

	It("should split the two-source example evenly and in order", func() {
		shards := [][]uint32{ksort.Seq(1, 2, 6), ksort.Seq(2, 2, 6)}
		fetcher := &recFetcher{LocalFetcher: LocalFetcher{Shards: shards}}

		ranges, rstats, err := Resolve(ctx, coarseOf(shards, 3), 2, fetcher)
		Expect(err).NotTo(HaveOccurred())
		checkAssignment(shards, ranges, 2)

		Expect(ranges[0]).To(Equal([]Range{{SID: 0, DID: 0, First: 0, Last: 2}, {SID: 0, DID: 1, First: 3, Last: 5}}))
		Expect(ranges[1]).To(Equal([]Range{{SID: 1, DID: 0, First: 0, Last: 2}, {SID: 1, DID: 1, First: 3, Last: 5}}))
		Expect(rstats.Refinements).To(Equal(int64(2)))
		Expect(rstats.ItemsConsumed).To(Equal(int64(12)))

		// only the last round is final
		Expect(fetcher.rounds).To(HaveLen(2))
		for _, req := range fetcher.rounds[0] {
			Expect(req.Final).To(BeFalse())
		}
		for _, req := range fetcher.rounds[1] {
			Expect(req.Final).To(BeTrue())
			Expect(req.DID).To(Equal(uint32(1)))
		}
	})

	It("should resolve a single one-key source", func() {
		shards := [][]uint32{{42}}
		ranges, _, err := Resolve(ctx, coarseOf(shards, 1000), 1, &LocalFetcher{Shards: shards})
		Expect(err).NotTo(HaveOccurred())
		Expect(ranges).To(Equal([][]Range{{{SID: 0, DID: 0, First: 0, Last: 0}}}))
	})

	It("should release the sources with empty final requests", func() {
		shards := [][]uint32{{}, {}}
		fetcher := &recFetcher{LocalFetcher: LocalFetcher{Shards: shards}}
		ranges, _, err := Resolve(ctx, coarseOf(shards, 10), 2, fetcher)
		Expect(err).NotTo(HaveOccurred())
		checkAssignment(shards, ranges, 2)

		Expect(fetcher.rounds).To(HaveLen(1))
		for _, req := range fetcher.rounds[0] {
			Expect(req.Final).To(BeTrue())
			Expect(req.Last).To(Equal(req.First - 1))
		}
	})

	DescribeTable("should produce conserved, balanced, and ordered ranges",
		func(n int, length, stride int64, mod uint32) {
			shards := sortedShards(length*int64(n)+int64(mod), n, length, mod)
			fetcher := &recFetcher{LocalFetcher: LocalFetcher{Shards: shards}}

			ranges, rstats, err := Resolve(ctx, coarseOf(shards, stride), n, fetcher)
			Expect(err).NotTo(HaveOccurred())
			checkAssignment(shards, ranges, n)

			// at most one refinement per destination, the last round is final
			Expect(rstats.Refinements).To(BeNumerically("<=", n))
			Expect(fetcher.rounds).NotTo(BeEmpty())
			last := fetcher.rounds[len(fetcher.rounds)-1]
			for _, req := range last {
				Expect(req.Final).To(BeTrue())
			}
			for _, round := range fetcher.rounds[:len(fetcher.rounds)-1] {
				Expect(round[0].Final).To(BeFalse())
			}
		},
		Entry("5 x 10000, stride 1000", 5, int64(10000), int64(1000), uint32(0)),
		Entry("5 x 10007, stride 1000", 5, int64(10007), int64(1000), uint32(0)),
		Entry("3 x 999, stride 1000", 3, int64(999), int64(1000), uint32(0)),
		Entry("8 x 4096, stride 64", 8, int64(4096), int64(64), uint32(0)),
		Entry("4 x 1000, stride 1", 4, int64(1000), int64(1), uint32(0)),
		Entry("1 x 5000, stride 100", 1, int64(5000), int64(100), uint32(0)),
		Entry("6 x 3000, stride 7", 6, int64(3000), int64(7), uint32(0)),
		Entry("duplicates: 5 x 10000, 10 distinct keys", 5, int64(10000), int64(1000), uint32(10)),
		Entry("duplicates: 4 x 5000, 3 distinct keys", 4, int64(5000), int64(50), uint32(3)),
		Entry("all keys equal", 3, int64(3000), int64(100), uint32(1)),
	)

	It("should handle skewed sources", func() {
		var (
			low  = ksort.Seq(0, 1, 4000)      // everything below the others
			mid  = ksort.Seq(10_000, 3, 4000) // interleaves with high
			high = ksort.Seq(10_001, 3, 4000)
		)
		shards := [][]uint32{high, low, mid}
		ranges, _, err := Resolve(ctx, coarseOf(shards, 500), 3, &LocalFetcher{Shards: shards})
		Expect(err).NotTo(HaveOccurred())
		checkAssignment(shards, ranges, 3)
		// low fills the first destination alone
		Expect(ranges[1][0].Len()).To(Equal(int64(4000)))
	})

	It("should allow unequal shard lengths and fewer destinations", func() {
		shards := [][]uint32{
			sortedShards(1, 1, 1500, 0)[0],
			sortedShards(2, 1, 2500, 0)[0],
			sortedShards(3, 1, 2000, 0)[0],
		}
		ranges, _, err := Resolve(ctx, coarseOf(shards, 100), 2, &LocalFetcher{Shards: shards})
		Expect(err).NotTo(HaveOccurred())
		checkAssignment(shards, ranges, 2)
	})

	It("should be deterministic", func() {
		shards := sortedShards(11, 4, 8000, 1000)
		r1, s1, err := Resolve(ctx, coarseOf(shards, 250), 4, &LocalFetcher{Shards: shards})
		Expect(err).NotTo(HaveOccurred())
		r2, s2, err := Resolve(ctx, coarseOf(shards, 250), 4, &LocalFetcher{Shards: shards})
		Expect(err).NotTo(HaveOccurred())
		Expect(r2).To(Equal(r1))
		Expect(s2).To(Equal(s1))
	})

	Describe("errors", func() {
		var shards [][]uint32

		BeforeEach(func() {
			shards = [][]uint32{ksort.Seq(1, 2, 100), ksort.Seq(2, 2, 100)}
		})

		It("should reject totals that do not divide evenly", func() {
			_, _, err := Resolve(ctx, coarseOf(shards, 10), 3, &LocalFetcher{Shards: shards})
			Expect(err).To(HaveOccurred())
		})

		It("should reject invalid arguments", func() {
			_, _, err := Resolve(ctx, nil, 1, nil)
			Expect(err).To(HaveOccurred())
			_, _, err = Resolve(ctx, coarseOf(shards, 10), 0, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject out-of-order coarse histograms", func() {
			coarse := coarseOf(shards, 10)
			coarse[0], coarse[1] = coarse[1], coarse[0]
			_, _, err := Resolve(ctx, coarse, 2, &LocalFetcher{Shards: shards})
			Expect(IsErrInvariant(err)).To(BeTrue())
		})

		It("should reject coarse histograms with gaps", func() {
			coarse := coarseOf(shards, 10)
			coarse[1].Entries = append(coarse[1].Entries[:3], coarse[1].Entries[4:]...)
			_, _, err := Resolve(ctx, coarse, 2, &LocalFetcher{Shards: shards})
			Expect(IsErrInvariant(err)).To(BeTrue())
		})

		It("should fail without a fetcher", func() {
			_, _, err := Resolve(ctx, coarseOf(shards, 10), 2, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should propagate fetch errors", func() {
			errFetch := errors.New("source unreachable")
			fetcher := FetchFunc(func(context.Context, []DetailReq) ([]*hist.Histogram, error) {
				return nil, errFetch
			})
			_, _, err := Resolve(ctx, coarseOf(shards, 10), 2, fetcher)
			Expect(errors.Is(err, errFetch)).To(BeTrue())
		})

		It("should reject a detailed window that does not match the coarse entry", func() {
			local := &LocalFetcher{Shards: shards}
			fetcher := FetchFunc(func(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
				hists, err := local.FetchDetail(ctx, reqs)
				if err == nil && hists[1].Len() > 0 {
					hists[1].Entries[0].Value++
				}
				return hists, err
			})
			_, _, err := Resolve(ctx, coarseOf(shards, 10), 2, fetcher)
			Expect(IsErrInvariant(err)).To(BeTrue())
		})

		It("should reject a detailed window that is not item-exact", func() {
			fetcher := FetchFunc(func(_ context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
				hists := make([]*hist.Histogram, len(reqs))
				for i := range reqs {
					r := &reqs[i]
					hists[i] = hist.Build(r.SID, shards[r.SID], r.First, r.Last-r.First+1, 2)
				}
				return hists, nil
			})
			_, _, err := Resolve(ctx, coarseOf(shards, 10), 2, fetcher)
			Expect(IsErrInvariant(err)).To(BeTrue())
		})

		It("should reject a wrong number of replies", func() {
			fetcher := FetchFunc(func(context.Context, []DetailReq) ([]*hist.Histogram, error) {
				return []*hist.Histogram{}, nil
			})
			_, _, err := Resolve(ctx, coarseOf(shards, 10), 2, fetcher)
			Expect(IsErrInvariant(err)).To(BeTrue())
		})

		It("should stop on a canceled context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := Resolve(cctx, coarseOf(shards, 10), 2, &LocalFetcher{Shards: shards})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
