// Package stats provides methods and functionality to register, track, log,
// and export metrics that, for the most part, include "counter" and "latency" kinds.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"sort"
	ratomic "sync/atomic"

	"github.com/NVIDIA/hsort/cmn/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type (
	iprom interface {
		inc(parent *statsValue)
		add(parent *statsValue, val int64)
		set(parent *statsValue, val int64)
		observeWith(parent *statsValue, label string, val float64)
	}

	counter      struct{ prometheus.Counter }
	gauge        struct{ prometheus.Gauge }
	histogramVec struct{ *prometheus.HistogramVec }

	statsValue struct {
		iprom
		kind       string
		Value      int64 `json:"v,string"`
		numSamples int64
	}

	// Prometheus-backed Tracker; every instance owns its registry
	Prom struct {
		tracker map[string]*statsValue
		reg     *prometheus.Registry
	}
)

// interface guard
var (
	_ iprom   = (*counter)(nil)
	_ iprom   = (*gauge)(nil)
	_ iprom   = (*histogramVec)(nil)
	_ Tracker = (*Prom)(nil)
)

func (v counter) inc(parent *statsValue) {
	ratomic.AddInt64(&parent.Value, 1)
	v.Inc()
}

func (v counter) add(parent *statsValue, val int64) {
	ratomic.AddInt64(&parent.Value, val)
	v.Add(float64(val))
}

func (v gauge) inc(parent *statsValue) {
	ratomic.AddInt64(&parent.Value, 1)
	v.Inc()
}

func (v gauge) add(parent *statsValue, val int64) {
	ratomic.AddInt64(&parent.Value, val)
	v.Add(float64(val))
}

func (v gauge) set(parent *statsValue, val int64) {
	ratomic.StoreInt64(&parent.Value, val)
	v.Set(float64(val))
}

func (h histogramVec) observeWith(parent *statsValue, label string, val float64) {
	ratomic.AddInt64(&parent.numSamples, 1)
	h.WithLabelValues(label).Observe(val)
}

// illegal impl. placeholders

func (counter) set(*statsValue, int64)                   { debug.Assert(false) }
func (counter) observeWith(*statsValue, string, float64) { debug.Assert(false) }
func (gauge) observeWith(*statsValue, string, float64)   { debug.Assert(false) }
func (histogramVec) inc(*statsValue)                     { debug.Assert(false) }
func (histogramVec) add(*statsValue, int64)              { debug.Assert(false) }
func (histogramVec) set(*statsValue, int64)              { debug.Assert(false) }

//////////
// Prom //
//////////

func NewProm() *Prom {
	p := &Prom{tracker: make(map[string]*statsValue, 16), reg: prometheus.NewRegistry()}
	p.reg.MustRegister(collectors.NewGoCollector())

	for _, name := range []string{Histograms, DetailRequests, DetailEntries, Refinements,
		Fragments, FragmentKeys, TransportBytes, KeysSorted} {
		p.regCounter(name)
	}
	p.regGauge(VerifyOK, "1 if the last run passed verification, 0 otherwise")
	p.regHistogram(PhaseSeconds, "run phase latency, in seconds", "phase")
	return p
}

func (p *Prom) regCounter(name string) {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name + "_total",
		Help:      "total " + name,
	})
	p.reg.MustRegister(c)
	p.tracker[name] = &statsValue{iprom: counter{c}, kind: KindCounter}
}

func (p *Prom) regGauge(name, help string) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	p.reg.MustRegister(g)
	p.tracker[name] = &statsValue{iprom: gauge{g}, kind: KindGauge}
}

func (p *Prom) regHistogram(name, help, label string) {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{label})
	p.reg.MustRegister(h)
	p.tracker[name] = &statsValue{iprom: histogramVec{h}, kind: KindHistogram}
}

func (p *Prom) get(name string) *statsValue {
	v, ok := p.tracker[name]
	debug.Assertf(ok, "invalid metric name %q", name)
	return v
}

func (p *Prom) Inc(name string) {
	v := p.get(name)
	v.inc(v)
}

func (p *Prom) Add(name string, val int64) {
	v := p.get(name)
	v.add(v, val)
}

func (p *Prom) Set(name string, val int64) {
	v := p.get(name)
	v.set(v, val)
}

func (p *Prom) ObservePhase(phase string, seconds float64) {
	v := p.get(PhaseSeconds)
	v.observeWith(v, phase, seconds)
}

// Get returns the current value (counters, gauges) or the number of samples (histograms).
func (p *Prom) Get(name string) int64 {
	v := p.get(name)
	if v.kind == KindHistogram {
		return ratomic.LoadInt64(&v.numSamples)
	}
	return ratomic.LoadInt64(&v.Value)
}

// Snapshot returns name => value for all tracked metrics, sorted by name in Names.
func (p *Prom) Snapshot() (names []string, values map[string]int64) {
	values = make(map[string]int64, len(p.tracker))
	for name := range p.tracker {
		names = append(names, name)
		values[name] = p.Get(name)
	}
	sort.Strings(names)
	return
}

func (p *Prom) Registry() *prometheus.Registry { return p.reg }
