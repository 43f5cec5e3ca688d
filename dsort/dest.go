// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"errors"
	"fmt"

	"github.com/NVIDIA/hsort/cmn/nlog"
	"github.com/NVIDIA/hsort/ksort"
	"github.com/NVIDIA/hsort/stats"
	"github.com/NVIDIA/hsort/transport"
)

// destination node: receives one fragment from every source
type dest struct {
	m     *Manager
	frags [][]uint32 // by source
	idx   int
	id    transport.NodeID
}

func newDest(m *Manager, idx int) *dest {
	return &dest{m: m, idx: idx, id: DstID(m.numNodes(), idx)}
}

func (d *dest) String() string { return fmt.Sprintf("dst[%d]", d.idx) }

func (d *dest) run(ctx context.Context) error {
	if err := d.recvFragments(ctx); err != nil {
		return err
	}
	res, err := d.merge()
	if err != nil {
		return err
	}
	return d.m.net.Push(ctx, coordAddr(trnameResult), encode(d.id, OpNodeResult, res))
}

// accept (and ack) exactly one fragment per source, in any order
func (d *dest) recvFragments(ctx context.Context) error {
	var (
		n    = d.m.numNodes()
		addr = transport.Addr{Node: d.id, Trname: trnameFrag}
	)
	d.frags = make([][]uint32, n)
	seen := make([]bool, n)
	for range n {
		req, err := d.m.net.Accept(ctx, addr)
		if err != nil {
			return err
		}
		frag := &Fragment{}
		if err := decode(&req.Msg, OpFragment, frag); err != nil {
			return err
		}
		sid := int(frag.SID)
		switch {
		case sid >= n || req.SID != SrcID(sid) || int(frag.DID) != d.idx:
			return newErrProtocol(d.String(), fmt.Errorf("fragment src %d => dst %d from %s", frag.SID, frag.DID, req.SID))
		case seen[sid]:
			return newErrProtocol(d.String(), fmt.Errorf("duplicate fragment from source %d", sid))
		}
		seen[sid] = true
		d.frags[sid] = frag.Keys
		if err := req.Reply(ackMsg(d.id)); err != nil {
			return err
		}
	}
	return nil
}

// concatenate, re-sort, and summarize
func (d *dest) merge() (*NodeResult, error) {
	started := d.m.phaseBegin(MergePhase)
	var total int
	for _, f := range d.frags {
		total += len(f)
	}
	keys := make([]uint32, 0, total)
	for _, f := range d.frags {
		keys = append(keys, f...)
	}
	d.frags = nil

	if int64(total) != d.m.target() {
		return nil, newErrInvariant("%s: received %d keys, expected %d", d, total, d.m.target())
	}
	cksum := ksort.Checksum(keys)
	sortKeys(keys, d.m.config.ParallelSort)
	if !ksort.IsSorted(keys) {
		return nil, errors.New(d.String() + ": merged sequence is not sorted")
	}
	d.m.tracker.Add(stats.KeysSorted, int64(total))

	res := &NodeResult{NID: uint32(d.id), Count: int64(total), Cksum: cksum}
	if total > 0 {
		res.Min, res.Max = keys[0], keys[total-1]
	}
	d.m.phaseEnd(MergePhase, started)
	nlog.Infoln(d.String()+":", res.String())
	return res, nil
}
