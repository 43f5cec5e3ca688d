// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"sort"

	"github.com/NVIDIA/hsort/cmn/debug"
	"github.com/NVIDIA/hsort/cmn/nlog"
	"github.com/NVIDIA/hsort/hist"

	"github.com/pkg/errors"
)

// Partition resolution: an adaptive k-way merge over per-source histograms.
//
// Each source has a cursor that is either on its coarse histogram or on a detailed
// (item-exact) look-ahead window. The merge selects the smallest active entry
// (lowest source index on ties) and consumes it whole. Consumption keeps the
// following bound: the number of unconsumed items smaller than anything consumed
// so far never exceeds T - R (R: items assigned to the current destination). A
// coarse block is consumed only when the bound provably holds after it; otherwise
// (or when R + N*L >= T) the resolver fetches detailed windows from all sources and
// continues at item granularity. When R reaches T the bound forces every
// remaining item to be >= every assigned one, which is the global order.

// maxValue is above any key
const maxValue = uint64(1) << 32

type (
	// DetailFetcher gathers one detailed histogram per source (reqs[i] is for source i);
	// replies must be in the same order.
	DetailFetcher interface {
		FetchDetail(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error)
	}
	// FetchFunc adapts a function to DetailFetcher
	FetchFunc func(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error)

	ResolveStats struct {
		CoarseConsumed int64 `json:"coarse_consumed,string"` // coarse entries consumed whole
		ItemsConsumed  int64 `json:"items_consumed,string"`  // detailed entries consumed
		Refinements    int64 `json:"refinements,string"`     // scatter/gather rounds
		DetailRequests int64 `json:"detail_requests,string"`
		DetailEntries  int64 `json:"detail_entries,string"` // total detailed entries received
		Resyncs        int64 `json:"resyncs,string"`        // detailed => coarse transitions
	}

	// ResolverState is owned by a single resolution; not safe for concurrent use.
	ResolverState struct {
		fetcher   DetailFetcher
		cursors   []cursor
		stats     ResolveStats
		target    int64 // T: items per destination
		numDst    int
		did       int   // current destination
		rtotal    int64 // R: items assigned to the current destination
		refined   bool  // refinement already done for the current destination
		finalSent bool
	}

	activeKind uint8

	// per-source cursor: ActiveHistogram = Coarse(ref) | Detailed(owned) | none (exhausted)
	cursor struct {
		coarse []hist.Entry // read-only
		detail []hist.Entry // owned; valid iff kind == activeDetail
		ci     int          // coarse: next entry (Start == pos); detailed: first entry with Start >= pos
		wci    int          // detailed: coarse entry that starts where the window ends
		di     int          // detailed: next entry
		pos    int64        // start of the still-unassigned region
		begin  int64        // where the current destination's range starts
		length int64
		kind   activeKind
	}
)

const (
	activeNone activeKind = iota
	activeCoarse
	activeDetail
)

func (f FetchFunc) FetchDetail(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
	return f(ctx, reqs)
}

// Resolve computes, for each source, one Range per destination (result[sid][did]).
// coarse[i] is source i's coarse histogram covering [0, length_i) in full; the sum
// of lengths must divide evenly by numDst.
func Resolve(ctx context.Context, coarse []*hist.Histogram, numDst int, fetcher DetailFetcher) ([][]Range, *ResolveStats, error) {
	rs, err := NewResolverState(coarse, numDst, fetcher)
	if err != nil {
		return nil, nil, err
	}
	ranges, err := rs.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ranges, &rs.stats, nil
}

func NewResolverState(coarse []*hist.Histogram, numDst int, fetcher DetailFetcher) (*ResolverState, error) {
	if len(coarse) == 0 {
		return nil, errors.New("resolve: no sources")
	}
	if numDst < 1 {
		return nil, errors.Errorf("resolve: invalid number of destinations %d", numDst)
	}
	rs := &ResolverState{fetcher: fetcher, cursors: make([]cursor, len(coarse)), numDst: numDst}
	var total int64
	for i, h := range coarse {
		if h.SID != uint32(i) {
			return nil, newErrInvariant("coarse histogram #%d is from source %d", i, h.SID)
		}
		length := h.Span()
		if err := h.Validate(0, length); err != nil {
			return nil, newErrInvariant("coarse %v", err)
		}
		c := &rs.cursors[i]
		c.coarse, c.length = h.Entries, length
		if length > 0 {
			c.kind = activeCoarse
		}
		total += length
	}
	if total%int64(numDst) != 0 {
		return nil, errors.Errorf("resolve: total %d does not divide evenly by %d destinations", total, numDst)
	}
	rs.target = total / int64(numDst)
	return rs, nil
}

func (rs *ResolverState) Stats() *ResolveStats { return &rs.stats }

// Run resolves all destinations in order and checks conservation.
func (rs *ResolverState) Run(ctx context.Context) ([][]Range, error) {
	ranges := make([][]Range, len(rs.cursors))
	for sid := range ranges {
		ranges[sid] = make([]Range, 0, rs.numDst)
	}
	for rs.did = 0; rs.did < rs.numDst; rs.did++ {
		if err := rs.resolveOne(ctx); err != nil {
			return nil, err
		}
		for sid := range rs.cursors {
			c := &rs.cursors[sid]
			ranges[sid] = append(ranges[sid], Range{
				SID:   uint32(sid),
				DID:   uint32(rs.did),
				First: c.begin,
				Last:  c.pos - 1,
			})
		}
	}
	if !rs.finalSent {
		if err := rs.sendFinal(ctx); err != nil {
			return nil, err
		}
	}
	for sid := range rs.cursors {
		if c := &rs.cursors[sid]; c.pos != c.length {
			return nil, newErrInvariant("source %d: assigned %d out of %d", sid, c.pos, c.length)
		}
	}
	return ranges, nil
}

// fill the current destination with exactly T items
func (rs *ResolverState) resolveOne(ctx context.Context) error {
	rs.rtotal, rs.refined = 0, false
	for sid := range rs.cursors {
		c := &rs.cursors[sid]
		c.begin = c.pos
	}
	for rs.rtotal < rs.target {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rs.refined {
			for sid := range rs.cursors {
				if err := rs.cursors[sid].resyncAligned(sid, &rs.stats); err != nil {
					return err
				}
			}
		}
		sid := rs.selectMin()
		if sid < 0 {
			return newErrInvariant("destination %d: no candidates with %d out of %d assigned", rs.did, rs.rtotal, rs.target)
		}
		c := &rs.cursors[sid]
		e := c.head()
		if c.kind == activeDetail {
			if err := c.consume(sid, &rs.stats); err != nil {
				return err
			}
			rs.rtotal++
			continue
		}
		// coarse
		if rs.refined {
			return newErrInvariant("destination %d: coarse entry %s of source %d after refinement", rs.did, e.String(), sid)
		}
		if rs.safe(sid) && rs.rtotal+int64(len(rs.cursors))*rs.minCoarseLen() < rs.target {
			rs.rtotal += e.Len()
			if err := c.consume(sid, &rs.stats); err != nil {
				return err
			}
			continue
		}
		if err := rs.refine(ctx, e.Len()); err != nil {
			return err
		}
	}
	debug.Assert(rs.rtotal == rs.target, rs.rtotal, rs.target)
	if nlog.Verbose() {
		nlog.Infof("dst[%d] resolved: %d items, %d refinement(s) so far", rs.did, rs.rtotal, rs.stats.Refinements)
	}
	return nil
}

// smallest active value; lowest source index on ties
func (rs *ResolverState) selectMin() int {
	var (
		best   = -1
		bvalue uint32
	)
	for sid := range rs.cursors {
		e := rs.cursors[sid].head()
		if e == nil {
			continue
		}
		if best < 0 || e.Value < bvalue {
			best, bvalue = sid, e.Value
		}
	}
	return best
}

// safe to consume source sid's coarse head entry whole: the entry plus
// everything elsewhere that may be smaller than the source's next value fits in T - R
func (rs *ResolverState) safe(sid int) bool {
	var (
		c      = &rs.cursors[sid]
		e      = c.head()
		u      = c.nextValue()
		budget = rs.target - rs.rtotal
		need   = e.Len()
	)
	if need > budget {
		return false
	}
	for other := range rs.cursors {
		if other == sid {
			continue
		}
		need += rs.cursors[other].countBelow(u, budget-need)
		if need > budget {
			return false
		}
	}
	return true
}

// smallest coarse head entry length across sources
func (rs *ResolverState) minCoarseLen() (l int64) {
	l = rs.target
	for sid := range rs.cursors {
		c := &rs.cursors[sid]
		if c.kind == activeCoarse {
			l = min(l, c.coarse[c.ci].Len())
		}
	}
	return
}

// refine fetches, from every source, a detailed window of max(N*L, T-R) items
// starting at the source's position, rounded up to the next coarse entry boundary
func (rs *ResolverState) refine(ctx context.Context, l int64) error {
	if rs.refined {
		return newErrInvariant("destination %d: second refinement", rs.did)
	}
	var (
		final  = rs.did == rs.numDst-1
		window = max(int64(len(rs.cursors))*l, rs.target-rs.rtotal)
		reqs   = make([]DetailReq, len(rs.cursors))
	)
	for sid := range rs.cursors {
		c := &rs.cursors[sid]
		end := c.roundUp(min(c.pos+window, c.length))
		reqs[sid] = DetailReq{First: c.pos, Last: end - 1, SID: uint32(sid), DID: uint32(rs.did), Final: final}
	}
	hists, err := rs.fetch(ctx, reqs)
	if err != nil {
		return err
	}
	for sid, h := range hists {
		if err := rs.cursors[sid].supersede(sid, &reqs[sid], h); err != nil {
			return err
		}
		rs.stats.DetailEntries += int64(h.Len())
	}
	rs.refined = true
	rs.finalSent = rs.finalSent || final
	rs.stats.Refinements++
	return nil
}

// the last destination did not need refinement: release the serving sources
func (rs *ResolverState) sendFinal(ctx context.Context) error {
	reqs := make([]DetailReq, len(rs.cursors))
	for sid := range rs.cursors {
		c := &rs.cursors[sid]
		reqs[sid] = DetailReq{First: c.pos, Last: c.pos - 1, SID: uint32(sid), DID: uint32(rs.numDst - 1), Final: true}
	}
	hists, err := rs.fetch(ctx, reqs)
	if err != nil {
		return err
	}
	for sid, h := range hists {
		if h.Len() != 0 {
			return newErrInvariant("source %d: non-empty reply (%d) to an empty request", sid, h.Len())
		}
	}
	rs.finalSent = true
	return nil
}

func (rs *ResolverState) fetch(ctx context.Context, reqs []DetailReq) ([]*hist.Histogram, error) {
	if rs.fetcher == nil {
		return nil, errors.New("resolve: detailed histograms required but no fetcher")
	}
	rs.stats.DetailRequests += int64(len(reqs))
	hists, err := rs.fetcher.FetchDetail(ctx, reqs)
	if err != nil {
		return nil, errors.WithMessagef(err, "destination %d: failed to fetch detailed histograms", rs.did)
	}
	if len(hists) != len(reqs) {
		return nil, newErrInvariant("expected %d detailed histograms, got %d", len(reqs), len(hists))
	}
	return hists, nil
}

////////////
// cursor //
////////////

func (c *cursor) head() *hist.Entry {
	switch c.kind {
	case activeCoarse:
		return &c.coarse[c.ci]
	case activeDetail:
		return &c.detail[c.di]
	default:
		return nil
	}
}

// value of the source's first item after the head entry (maxValue if none)
func (c *cursor) nextValue() uint64 {
	switch c.kind {
	case activeCoarse:
		if c.ci+1 < len(c.coarse) {
			return uint64(c.coarse[c.ci+1].Value)
		}
	case activeDetail:
		if c.di+1 < len(c.detail) {
			return uint64(c.detail[c.di+1].Value)
		}
		if c.wci < len(c.coarse) {
			return uint64(c.coarse[c.wci].Value)
		}
	}
	return maxValue
}

// upper bound on the number of unconsumed items with values below u;
// stops counting once above the limit
func (c *cursor) countBelow(u uint64, limit int64) (n int64) {
	ci := c.ci
	switch c.kind {
	case activeNone:
		return 0
	case activeDetail:
		rest := c.detail[c.di:]
		k := sort.Search(len(rest), func(i int) bool { return uint64(rest[i].Value) >= u })
		if n = int64(k); k < len(rest) || n > limit {
			return n
		}
		ci = c.wci
	}
	for ; ci < len(c.coarse) && uint64(c.coarse[ci].Value) < u; ci++ {
		if n += c.coarse[ci].Len(); n > limit {
			break
		}
	}
	return n
}

// end of the coarse entry that contains `end - 1` (i.e., the first coarse start >= end)
func (c *cursor) roundUp(end int64) int64 {
	i := sort.Search(len(c.coarse), func(i int) bool { return c.coarse[i].Start >= end })
	if i < len(c.coarse) {
		return c.coarse[i].Start
	}
	return c.length
}

// consume the head entry
func (c *cursor) consume(sid int, stats *ResolveStats) error {
	switch c.kind {
	case activeCoarse:
		c.pos = c.coarse[c.ci].End()
		c.ci++
		stats.CoarseConsumed++
		if c.ci == len(c.coarse) {
			c.kind = activeNone
		}
	case activeDetail:
		c.pos = c.detail[c.di].End()
		c.di++
		stats.ItemsConsumed++
		for c.ci < len(c.coarse) && c.coarse[c.ci].Start < c.pos {
			c.ci++
		}
		if c.di == len(c.detail) {
			return c.resync(sid, stats) // exhausted window
		}
	default:
		debug.Assert(false)
	}
	return nil
}

// supersede: replace the active histogram with a validated detailed window
func (c *cursor) supersede(sid int, req *DetailReq, h *hist.Histogram) error {
	length := req.Last - req.First + 1
	if h.SID != uint32(sid) {
		return newErrInvariant("detailed histogram for source %d is from source %d", sid, h.SID)
	}
	if err := h.Validate(req.First, length); err != nil {
		return newErrInvariant("detailed %v", err)
	}
	if length == 0 {
		debug.Assert(c.kind == activeNone)
		return nil
	}
	for i := range h.Entries {
		if h.Entries[i].Len() != hist.DetailStride {
			return newErrInvariant("source %d: detailed entry %s is not item-exact", sid, h.Entries[i].String())
		}
	}
	if active := c.head(); h.Entries[0].Value != active.Value {
		return newErrInvariant("source %d: detailed window starts with %d, expected %d at %d",
			sid, h.Entries[0].Value, active.Value, c.pos)
	}
	end := req.Last + 1
	c.detail, c.di, c.kind = h.Entries, 0, activeDetail
	c.wci = sort.Search(len(c.coarse), func(i int) bool { return c.coarse[i].Start >= end })
	return nil
}

// resync: discard the detailed window and resume the coarse cursor at pos
func (c *cursor) resync(sid int, stats *ResolveStats) error {
	c.detail, c.di = nil, 0
	stats.Resyncs++
	if c.ci == len(c.coarse) {
		if c.pos != c.length {
			return newErrInvariant("source %d: resync at %d out of %d", sid, c.pos, c.length)
		}
		c.kind = activeNone
		return nil
	}
	if e := &c.coarse[c.ci]; e.Start != c.pos {
		return newErrInvariant("source %d: resync at %d not on a coarse boundary (%s)", sid, c.pos, e.String())
	}
	c.kind = activeCoarse
	return nil
}

// carried-over detailed cursor that reached a coarse boundary goes back to coarse
func (c *cursor) resyncAligned(sid int, stats *ResolveStats) error {
	if c.kind != activeDetail || c.ci >= len(c.coarse) {
		return nil
	}
	e := &c.coarse[c.ci]
	if e.Start != c.pos {
		return nil
	}
	if d := &c.detail[c.di]; d.Value != e.Value {
		return newErrInvariant("source %d: detailed value %d != coarse value %d at %d", sid, d.Value, e.Value, c.pos)
	}
	return c.resync(sid, stats)
}
