// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"fmt"

	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/transport"

	"golang.org/x/sync/errgroup"
)

type (
	// scatter/gather over the network: one request per source, issued concurrently
	netFetcher struct {
		net *transport.Network
	}
	// LocalFetcher serves detailed histograms straight from in-memory sorted shards.
	LocalFetcher struct {
		Shards [][]uint32
	}
)

// interface guard
var (
	_ DetailFetcher = (*netFetcher)(nil)
	_ DetailFetcher = (*LocalFetcher)(nil)
)

func (f *netFetcher) FetchDetail(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
	var (
		hists     = make([]*hist.Histogram, len(reqs))
		group, gc = errgroup.WithContext(ctx)
	)
	for i := range reqs {
		req := &reqs[i]
		group.Go(func() error {
			h, err := f.fetchOne(gc, req)
			hists[i] = h
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return hists, nil
}

func (f *netFetcher) fetchOne(ctx context.Context, req *DetailReq) (*hist.Histogram, error) {
	var (
		msg = encode(CoordID, OpDetailRequest, req)
		to  = transport.Addr{Node: SrcID(int(req.SID)), Trname: trnameDetail}
	)
	resp, err := f.net.Request(ctx, to, msg)
	if err != nil {
		return nil, err
	}
	hmsg := &HistogramMsg{}
	if err := decode(resp, OpHistogram, hmsg); err != nil {
		return nil, err
	}
	if hmsg.SID != req.SID {
		return nil, newErrProtocol("detail reply from "+resp.SID.String(), fmt.Errorf("histogram of source %d", hmsg.SID))
	}
	return &hmsg.Histogram, nil
}

func (f *LocalFetcher) FetchDetail(_ context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
	hists := make([]*hist.Histogram, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		if int(req.SID) >= len(f.Shards) {
			return nil, fmt.Errorf("%s: no such source", req)
		}
		hists[i] = hist.Detail(req.SID, f.Shards[req.SID], req.First, req.Last)
	}
	return hists, nil
}
