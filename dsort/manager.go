// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"context"
	"fmt"
	"time"

	"github.com/NVIDIA/hsort/cmn"
	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/cmn/mono"
	"github.com/NVIDIA/hsort/cmn/nlog"
	"github.com/NVIDIA/hsort/hist"
	"github.com/NVIDIA/hsort/stats"
	"github.com/NVIDIA/hsort/tracing"
	"github.com/NVIDIA/hsort/transport"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Manager runs one distributed sort: the coordinator plus N source and N destination
// nodes, each a goroutine talking to the others only through the transport.
type Manager struct {
	config  *cmn.Config
	net     *transport.Network
	tracker stats.Tracker
	Metrics *Metrics
	errs    cos.Errs
	UUID    string
	seed    int64

	// coordinator state
	coarse     []*hist.Histogram
	srcCksums  []uint32
	assignment [][]Range // [sid][did]
	results    []NodeResult
	begin      time.Time
}

// NewManager validates the config; a nil tracker gets a private Prometheus registry.
func NewManager(config *cmn.Config, tracker stats.Tracker) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = stats.NewProm()
	}
	m := &Manager{
		config:  config,
		tracker: tracker,
		Metrics: newMetrics(config.NumNodes),
		errs:    cos.NewErrs(config.NumNodes),
		UUID:    cmn.GenUUID(),
		seed:    config.SeedOrNow(),
	}
	m.net = transport.NewNetwork(m.UUID, &transport.Extra{
		Compression: config.Transport.Compression,
		Timeout:     config.Timeout.D(),
		Burst:       config.Transport.Burst,
		Checksum:    config.Transport.Checksum,
	})
	return m, nil
}

func (m *Manager) String() string { return "dsort[" + m.UUID + "]" }

func (m *Manager) numNodes() int { return m.config.NumNodes }

// T: every destination receives exactly one shard worth of keys
func (m *Manager) target() int64 { return m.config.ShardLen }

func (m *Manager) Network() *transport.Network { return m.net }

// Run starts all nodes and the coordinator, waits for them, and verifies the outcome.
// A non-nil error means the run did not complete; verification failures are reported
// in the RunReport.
func (m *Manager) Run(ctx context.Context) (*RunReport, error) {
	ctx, end := tracing.StartSpan(ctx, "hsort", tracing.String("uuid", m.UUID), tracing.Int("nodes", m.numNodes()))
	defer end()

	m.begin = time.Now()
	nlog.Infof("%s: starting %d sources and %d destinations (shard length %d, stride %d, seed %d)",
		m, m.numNodes(), m.numNodes(), m.config.ShardLen, m.config.Stride, m.seed)

	group, gctx := errgroup.WithContext(ctx)
	for i := range m.numNodes() {
		src := newSource(m, i)
		group.Go(func() error { return m.wrap(src.String(), src.run(gctx)) })
	}
	for i := range m.numNodes() {
		dst := newDest(m, i)
		group.Go(func() error { return m.wrap(dst.String(), dst.run(gctx)) })
	}
	group.Go(func() error { return m.wrap("coord", m.coordinate(gctx)) })
	err := group.Wait()

	num, size, wire := m.net.Totals()
	m.Metrics.lock()
	m.Metrics.Messages, m.Metrics.Bytes, m.Metrics.WireBytes = num, size, wire
	m.Metrics.unlock()
	m.tracker.Add(stats.TransportBytes, wire)

	report := m.newReport()
	if err != nil {
		if ctx.Err() != nil {
			err = newAbortError(m.UUID, ctx.Err())
		}
		m.Metrics.Aborted = true
		if cnt, all := m.errs.JoinErr(); cnt > 1 {
			nlog.Errorln(m.String()+":", all)
		}
		report.finalize(nil)
		return report, err
	}

	v := m.verify()
	report.finalize(v)
	nlog.Infof("%s: done in %v, verification passed: %t", m, report.Elapsed, v.Passed)
	return report, nil
}

// verification failures are warnings: the run itself completed
func (m *Manager) verify() *Verification {
	v := Verify(m.results, m.srcCksums, m.target())
	if v.Passed {
		m.tracker.Set(stats.VerifyOK, 1)
		return v
	}
	m.tracker.Set(stats.VerifyOK, 0)
	for _, s := range v.Errors {
		nlog.Warningf("%s: verification: %s", m, s)
		m.Metrics.addWarning(s)
	}
	return v
}

// record the node's failure (once per node) and pass it on
func (m *Manager) wrap(node string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.Canceled) {
		err = errors.WithMessage(err, node)
		m.errs.Add(err)
		m.Metrics.addError(err)
		nlog.Errorln(err)
	}
	return err
}

//
// phases
//

func (m *Manager) phaseBegin(name string) int64 {
	m.Metrics.phase(name).begin()
	return mono.NanoTime()
}

// observes the node's own share of the phase; the phase itself ends with its last node
func (m *Manager) phaseEnd(name string, started int64) {
	m.tracker.ObservePhase(name, mono.Since(started).Seconds())
	if elapsed, last := m.Metrics.phase(name).finish(); last && nlog.Verbose() {
		nlog.Infof("%s: phase %q done in %v", m, name, elapsed)
	}
}

//
// coordinator
//

func (m *Manager) coordinate(ctx context.Context) error {
	if err := m.collectHistograms(ctx); err != nil {
		return err
	}
	if err := m.resolve(ctx); err != nil {
		return err
	}
	if err := m.sendRanges(ctx); err != nil {
		return err
	}
	return m.collectResults(ctx)
}

func (m *Manager) collectHistograms(ctx context.Context) error {
	var (
		n    = m.numNodes()
		addr = coordAddr(trnameHist)
	)
	m.coarse = make([]*hist.Histogram, n)
	m.srcCksums = make([]uint32, n)
	for range n {
		msg, err := m.net.Pull(ctx, addr)
		if err != nil {
			return err
		}
		hmsg := &HistogramMsg{}
		if err := decode(msg, OpHistogram, hmsg); err != nil {
			return err
		}
		sid := int(hmsg.SID)
		switch {
		case sid >= n || msg.SID != SrcID(sid):
			return newErrProtocol("histogram from "+msg.SID.String(), fmt.Errorf("bad source %d", sid))
		case m.coarse[sid] != nil:
			return newErrProtocol("histogram from "+msg.SID.String(), errors.New("duplicate"))
		case hmsg.Span() != hmsg.Length:
			return newErrProtocol("histogram from "+msg.SID.String(),
				fmt.Errorf("covers %d out of %d", hmsg.Span(), hmsg.Length))
		}
		m.coarse[sid] = &hmsg.Histogram
		m.srcCksums[sid] = hmsg.Cksum
		m.tracker.Inc(stats.Histograms)
	}
	// begun by the sources
	if elapsed, _ := m.Metrics.Histogram.finish(); elapsed > 0 {
		m.tracker.ObservePhase(HistogramPhase, elapsed.Seconds())
	}
	return nil
}

func (m *Manager) resolve(ctx context.Context) error {
	ctx, end := tracing.StartSpan(ctx, ResolutionPhase, tracing.Int("destinations", m.numNodes()))
	defer end()
	started := m.phaseBegin(ResolutionPhase)

	ranges, rstats, err := Resolve(ctx, m.coarse, m.numNodes(), &netFetcher{net: m.net})
	if err != nil {
		return err
	}
	m.assignment = ranges
	m.coarse = nil

	m.Metrics.lock()
	m.Metrics.Resolver = *rstats
	m.Metrics.unlock()
	m.tracker.Add(stats.Refinements, rstats.Refinements)
	m.phaseEnd(ResolutionPhase, started)
	nlog.Infof("%s: resolved %d destinations: %d coarse entries, %d refinement(s), %d detailed entries",
		m, m.numNodes(), rstats.CoarseConsumed, rstats.Refinements, rstats.DetailEntries)
	return nil
}

func (m *Manager) sendRanges(ctx context.Context) error {
	for sid, ranges := range m.assignment {
		batch := &RangeBatch{Ranges: ranges}
		to := transport.Addr{Node: SrcID(sid), Trname: trnameRanges}
		if err := m.net.Push(ctx, to, encode(CoordID, OpRangeBatch, batch)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) collectResults(ctx context.Context) error {
	var (
		n    = m.numNodes()
		addr = coordAddr(trnameResult)
		seen = make([]bool, n)
	)
	m.results = make([]NodeResult, 0, n)
	for range n {
		msg, err := m.net.Pull(ctx, addr)
		if err != nil {
			return err
		}
		res := NodeResult{}
		if err := decode(msg, OpNodeResult, &res); err != nil {
			return err
		}
		did := int(res.NID) - int(DstID(n, 0))
		switch {
		case did < 0 || did >= n || msg.SID != transport.NodeID(res.NID):
			return newErrProtocol("result from "+msg.SID.String(), fmt.Errorf("bad node %d", res.NID))
		case seen[did]:
			return newErrProtocol("result from "+msg.SID.String(), errors.New("duplicate"))
		}
		seen[did] = true
		m.results = append(m.results, res)
	}
	return nil
}

//
// dry run
//

// DryRun generates and sorts all shards in-process and resolves the partition
// ranges without starting any nodes.
func DryRun(ctx context.Context, config *cmn.Config) ([][]Range, *ResolveStats, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	var (
		n      = config.NumNodes
		seed   = config.SeedOrNow()
		shards = make([][]uint32, n)
		coarse = make([]*hist.Histogram, n)
	)
	for i := range n {
		keys := genShard(seed, i, config.ShardLen)
		sortKeys(keys, config.ParallelSort)
		shards[i] = keys
		coarse[i] = hist.Build(uint32(i), keys, 0, int64(len(keys)), config.Stride)
	}
	return Resolve(ctx, coarse, n, &LocalFetcher{Shards: shards})
}
