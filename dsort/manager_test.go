// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"path/filepath"
	"time"

	"github.com/NVIDIA/hsort/cmn"
	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/cmn/jsp"
	"github.com/NVIDIA/hsort/ksort"
	"github.com/NVIDIA/hsort/stats"
	"github.com/NVIDIA/hsort/transport"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testConfig(n int, length, stride int64) *cmn.Config {
	config := cmn.DefaultConfig()
	config.NumNodes = n
	config.ShardLen = length
	config.Stride = stride
	config.Seed = 1234
	config.Timeout = cos.Duration(30 * time.Second)
	return config
}

var _ = Describe("Manager", func() {
	ctx := context.Background()

	DescribeTable("should sort and verify end to end",
		func(n int, length, stride int64, tweak func(*cmn.Config)) {
			config := testConfig(n, length, stride)
			if tweak != nil {
				tweak(config)
			}
			prom := stats.NewProm()
			m, err := NewManager(config, prom)
			Expect(err).NotTo(HaveOccurred())

			report, err := m.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Passed).To(BeTrue(), "%v", report.Verification.Errors)
			Expect(report.UUID).To(Equal(m.UUID))
			Expect(report.Seed).To(Equal(int64(1234)))
			Expect(report.Verification.Results).To(HaveLen(n))
			for i, r := range report.Verification.Results {
				Expect(r.NID).To(Equal(uint32(DstID(n, i))))
				Expect(r.Count).To(Equal(length))
			}

			// every phase ran to completion
			for _, pi := range []*PhaseInfo{m.Metrics.LocalSort, m.Metrics.Histogram, m.Metrics.Resolution,
				m.Metrics.Distribution, m.Metrics.Merge} {
				Expect(pi.Finished).To(BeTrue())
				Expect(pi.Running).To(BeFalse())
			}
			Expect(m.Metrics.Errors).To(BeEmpty())
			Expect(m.Metrics.Messages).To(BeNumerically(">", 0))

			Expect(prom.Get(stats.Histograms)).To(Equal(int64(n)))
			Expect(prom.Get(stats.Fragments)).To(Equal(int64(n * n)))
			Expect(prom.Get(stats.FragmentKeys)).To(Equal(int64(n) * length))
			Expect(prom.Get(stats.KeysSorted)).To(Equal(2 * int64(n) * length))
			Expect(prom.Get(stats.Refinements)).To(Equal(m.Metrics.Resolver.Refinements))
			Expect(prom.Get(stats.VerifyOK)).To(Equal(int64(1)))
		},
		Entry("defaults, scaled down", 5, int64(20_000), int64(1000), nil),
		Entry("single node", 1, int64(5000), int64(100), nil),
		Entry("stride 1", 3, int64(500), int64(1), nil),
		Entry("stride above shard length", 4, int64(300), int64(1000), nil),
		Entry("empty shards", 3, int64(0), int64(10), nil),
		Entry("parallel send and sort", 6, int64(100_000), int64(500), func(c *cmn.Config) {
			c.ParallelSend = true
			c.ParallelSort = true
		}),
		Entry("compressed and checksummed transport", 4, int64(10_000), int64(250), func(c *cmn.Config) {
			c.Transport.Compression = cmn.CompressAlways
			c.Transport.Checksum = true
		}),
		Entry("burst smaller than the number of nodes", 8, int64(2000), int64(100), func(c *cmn.Config) {
			c.Transport.Burst = 1
		}),
	)

	It("should reproduce the same assignment for the same seed", func() {
		var results [][]NodeResult
		for range 2 {
			m, err := NewManager(testConfig(4, 8000, 200), nil)
			Expect(err).NotTo(HaveOccurred())
			report, err := m.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Passed).To(BeTrue())
			results = append(results, report.Verification.Results)
		}
		Expect(results[1]).To(Equal(results[0]))
	})

	It("should agree with the dry run", func() {
		config := testConfig(3, 3000, 100)
		ranges, rstats, err := DryRun(ctx, config)
		Expect(err).NotTo(HaveOccurred())

		m, err := NewManager(config, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = m.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.assignment).To(Equal(ranges))
		Expect(m.Metrics.Resolver).To(Equal(*rstats))
	})

	It("should reject an invalid config", func() {
		config := testConfig(0, 10, 1)
		_, err := NewManager(config, nil)
		Expect(err).To(HaveOccurred())
	})

	It("should abort when the caller cancels", func() {
		m, err := NewManager(testConfig(3, 1000, 100), nil)
		Expect(err).NotTo(HaveOccurred())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		report, err := m.Run(cctx)
		Expect(err).To(HaveOccurred())
		Expect(IsErrAborted(err)).To(BeTrue())
		Expect(report.Passed).To(BeFalse())
		Expect(report.Metrics.Aborted).To(BeTrue())
	})

	It("should time out on a missing peer", func() {
		config := testConfig(2, 100, 10)
		config.Timeout = cos.Duration(50 * time.Millisecond)
		m, err := NewManager(config, nil)
		Expect(err).NotTo(HaveOccurred())

		// the coordinator alone: nobody pushes histograms
		err = m.collectHistograms(ctx)
		Expect(transport.IsErrTimeout(err)).To(BeTrue())
	})

	It("should fail on a protocol violation", func() {
		m, err := NewManager(testConfig(2, 100, 10), nil)
		Expect(err).NotTo(HaveOccurred())
		bogus := &NodeResult{NID: uint32(DstID(2, 0))}
		Expect(m.net.Push(ctx, coordAddr(trnameHist), encode(DstID(2, 0), OpNodeResult, bogus))).To(Succeed())

		err = m.collectHistograms(ctx)
		Expect(IsErrProtocol(err)).To(BeTrue())
	})

	It("should flag tampered results as warnings", func() {
		m, err := NewManager(testConfig(3, 300, 30), nil)
		Expect(err).NotTo(HaveOccurred())
		report, err := m.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Passed).To(BeTrue())
		Expect(m.Metrics.Warnings).To(BeEmpty())

		m.results[1].Cksum = (m.results[1].Cksum + 1) % ksort.CksumModulus
		v := m.verify()
		Expect(v.Passed).To(BeFalse())
		Expect(m.Metrics.Warnings).To(Equal(v.Errors))
		Expect(m.tracker.(*stats.Prom).Get(stats.VerifyOK)).To(BeEquivalentTo(0))
	})

	It("should save and load the report", func() {
		m, err := NewManager(testConfig(2, 1000, 100), nil)
		Expect(err).NotTo(HaveOccurred())
		report, err := m.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		for _, opts := range []jsp.Options{jsp.Plain(), jsp.CCSign()} {
			fpath := filepath.Join(GinkgoT().TempDir(), "report.json")
			Expect(report.Save(fpath, opts)).To(Succeed())
			var loaded *RunReport
			loaded, err = LoadReport(fpath, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).NotTo(BeIdenticalTo(report))
			Expect(loaded.UUID).To(Equal(report.UUID))
			Expect(loaded.Passed).To(BeTrue())
			Expect(loaded.Config.NumNodes).To(Equal(2))
			Expect(loaded.Verification.Results).To(Equal(report.Verification.Results))
			Expect(loaded.Metrics.Resolver).To(Equal(report.Metrics.Resolver))
		}
	})
})
