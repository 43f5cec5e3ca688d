// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"fmt"

	"github.com/NVIDIA/hsort/cmn/nlog"
	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/ksort"
	"github.com/NVIDIA/hsort/stats"
	"github.com/NVIDIA/hsort/transport"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// levels of the merge sort split across goroutines (2^depth tasks)
const parallelSortDepth = 3

// source node: owns one shard
type source struct {
	m     *Manager
	keys  []uint32 // sorted
	idx   int
	id    transport.NodeID
	cksum uint32
}

func genShard(seed int64, idx int, n int64) []uint32 { return ksort.Generate(seed+int64(idx), n) }

func sortKeys(keys []uint32, parallel bool) {
	if parallel {
		ksort.SortParallel(keys, parallelSortDepth)
	} else {
		ksort.Sort(keys)
	}
}

func newSource(m *Manager, idx int) *source {
	return &source{m: m, idx: idx, id: SrcID(idx)}
}

func (s *source) String() string { return fmt.Sprintf("src[%d]", s.idx) }

func (s *source) run(ctx context.Context) error {
	if err := s.localSort(); err != nil {
		return err
	}
	if err := s.sendHistogram(ctx); err != nil {
		return err
	}
	if err := s.serveDetail(ctx); err != nil {
		return err
	}
	ranges, err := s.recvRanges(ctx)
	if err != nil {
		return err
	}
	return s.distribute(ctx, ranges)
}

func (s *source) localSort() error {
	started := s.m.phaseBegin(LocalSortPhase)
	s.keys = genShard(s.m.seed, s.idx, s.m.config.ShardLen)
	s.cksum = ksort.Checksum(s.keys)
	sortKeys(s.keys, s.m.config.ParallelSort)
	if err := ksort.SelfCheck(s.keys, s.cksum); err != nil {
		return newErrInvariant("%s: %v", s, err)
	}
	s.m.tracker.Add(stats.KeysSorted, int64(len(s.keys)))
	s.m.phaseEnd(LocalSortPhase, started)
	return nil
}

func (s *source) sendHistogram(ctx context.Context) error {
	s.m.Metrics.Histogram.begin()
	h := hist.Build(uint32(s.idx), s.keys, 0, int64(len(s.keys)), s.m.config.Stride)
	hmsg := &HistogramMsg{Histogram: *h, Length: int64(len(s.keys)), Cksum: s.cksum}
	return s.m.net.Push(ctx, coordAddr(trnameHist), encode(s.id, OpHistogram, hmsg))
}

// serve detailed-histogram requests until the one marked final
func (s *source) serveDetail(ctx context.Context) error {
	addr := transport.Addr{Node: s.id, Trname: trnameDetail}
	for {
		req, err := s.m.net.Accept(ctx, addr)
		if err != nil {
			return err
		}
		dreq := &DetailReq{}
		if err := decode(&req.Msg, OpDetailRequest, dreq); err != nil {
			return err
		}
		if req.SID != CoordID || int(dreq.SID) != s.idx {
			return newErrProtocol(s.String(), fmt.Errorf("%s from %s", dreq, req.SID))
		}
		h := hist.Detail(dreq.SID, s.keys, dreq.First, dreq.Last)
		hmsg := &HistogramMsg{Histogram: *h, Length: int64(len(s.keys)), Cksum: s.cksum}
		if err := req.Reply(encode(s.id, OpHistogram, hmsg)); err != nil {
			return err
		}
		s.m.tracker.Inc(stats.DetailRequests)
		s.m.tracker.Add(stats.DetailEntries, int64(h.Len()))
		if nlog.Verbose() {
			nlog.Infof("%s: %s => %d entries", s, dreq, h.Len())
		}
		if dreq.Final {
			return nil
		}
	}
}

// receive and validate the assignment: one range per destination, in order,
// together covering the shard
func (s *source) recvRanges(ctx context.Context) ([]Range, error) {
	msg, err := s.m.net.Pull(ctx, transport.Addr{Node: s.id, Trname: trnameRanges})
	if err != nil {
		return nil, err
	}
	batch := &RangeBatch{}
	if err := decode(msg, OpRangeBatch, batch); err != nil {
		return nil, err
	}
	var (
		n    = s.m.numNodes()
		next int64
	)
	if len(batch.Ranges) != n {
		return nil, newErrProtocol(s.String(), fmt.Errorf("expected %d ranges, got %d", n, len(batch.Ranges)))
	}
	for did := range batch.Ranges {
		r := &batch.Ranges[did]
		if int(r.SID) != s.idx || int(r.DID) != did || r.First != next || r.Len() < 0 {
			return nil, newErrProtocol(s.String(), fmt.Errorf("bad range %s (expected dst %d from %d)", r, did, next))
		}
		next = r.End()
	}
	if next != int64(len(s.keys)) {
		return nil, newErrProtocol(s.String(), fmt.Errorf("ranges cover %d out of %d", next, len(s.keys)))
	}
	return batch.Ranges, nil
}

// stream each range to its destination and wait for the ack
func (s *source) distribute(ctx context.Context, ranges []Range) error {
	started := s.m.phaseBegin(DistributionPhase)
	if s.m.config.ParallelSend {
		group, gctx := errgroup.WithContext(ctx)
		for i := range ranges {
			r := &ranges[i]
			group.Go(func() error { return s.send(gctx, r) })
		}
		if err := group.Wait(); err != nil {
			return err
		}
	} else {
		for i := range ranges {
			if err := s.send(ctx, &ranges[i]); err != nil {
				return err
			}
		}
	}
	s.m.phaseEnd(DistributionPhase, started)
	return nil
}

func (s *source) send(ctx context.Context, r *Range) error {
	var (
		frag = &Fragment{Keys: s.keys[r.First:r.End()], First: r.First, SID: r.SID, DID: r.DID}
		to   = transport.Addr{Node: DstID(s.m.numNodes(), int(r.DID)), Trname: trnameFrag}
	)
	resp, err := s.m.net.Request(ctx, to, encode(s.id, OpFragment, frag))
	if err != nil {
		return errors.WithMessagef(err, "%s: send %s", s, r)
	}
	if err := checkAck(resp); err != nil {
		return err
	}
	s.m.tracker.Inc(stats.Fragments)
	s.m.tracker.Add(stats.FragmentKeys, int64(len(frag.Keys)))
	return nil
}
