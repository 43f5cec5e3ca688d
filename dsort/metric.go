// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"sync"
	"time"
)

const (
	LocalSortPhase    = "local_sort"
	HistogramPhase    = "histogram"
	ResolutionPhase   = "resolution"
	DistributionPhase = "distribution"
	MergePhase        = "merge"
)

// PhaseInfo contains general stats and state for given phase.
type PhaseInfo struct {
	Start time.Time `json:"started_time"`
	End   time.Time `json:"end_time"`
	// Elapsed time from start to end when the phase has finished.
	Elapsed time.Duration `json:"elapsed"`
	// Running specifies if phase is in progress.
	Running bool `json:"running"`
	// If running and finished are both false the phase did not start yet.
	Finished bool `json:"finished"`

	mu      sync.Mutex
	pending int // nodes yet to finish
}

// begin marks phase as in progress; with multiple nodes, the earliest begin wins.
func (pi *PhaseInfo) begin() {
	pi.mu.Lock()
	if !pi.Running && !pi.Finished {
		pi.Running = true
		pi.Start = time.Now()
	}
	pi.mu.Unlock()
}

// finish is called once per participating node; the last one marks the phase
// as finished and returns true.
func (pi *PhaseInfo) finish() (time.Duration, bool) {
	pi.mu.Lock()
	if pi.pending--; pi.pending > 0 {
		pi.mu.Unlock()
		return 0, false
	}
	pi.Running = false
	pi.Finished = true
	pi.End = time.Now()
	pi.Elapsed = pi.End.Sub(pi.Start)
	elapsed := pi.Elapsed
	pi.mu.Unlock()
	return elapsed, true
}

// Metrics is general struct which contains all stats about a distributed sort run.
type Metrics struct {
	LocalSort    *PhaseInfo `json:"local_sort"`
	Histogram    *PhaseInfo `json:"histogram"`
	Resolution   *PhaseInfo `json:"resolution"`
	Distribution *PhaseInfo `json:"distribution"`
	Merge        *PhaseInfo `json:"merge"`

	Resolver ResolveStats `json:"resolver"`

	// transport totals
	Messages  int64 `json:"messages,string"`
	Bytes     int64 `json:"bytes,string"`
	WireBytes int64 `json:"wire_bytes,string"`

	// Aborted specifies if the run has been aborted.
	Aborted bool `json:"aborted,omitempty"`
	// Warnings which were produced during the run.
	Warnings []string `json:"warnings,omitempty"`
	// Errors which happened during the run.
	Errors []string `json:"errors,omitempty"`

	mu sync.Mutex
}

// per-node phases are finished by each of the n nodes; the rest by the coordinator
func newMetrics(n int) *Metrics {
	return &Metrics{
		LocalSort:    &PhaseInfo{pending: n},
		Histogram:    &PhaseInfo{pending: 1},
		Resolution:   &PhaseInfo{pending: 1},
		Distribution: &PhaseInfo{pending: n},
		Merge:        &PhaseInfo{pending: n},
	}
}

func (m *Metrics) phase(name string) *PhaseInfo {
	switch name {
	case LocalSortPhase:
		return m.LocalSort
	case HistogramPhase:
		return m.Histogram
	case ResolutionPhase:
		return m.Resolution
	case DistributionPhase:
		return m.Distribution
	case MergePhase:
		return m.Merge
	default:
		return nil
	}
}

func (m *Metrics) lock()   { m.mu.Lock() }
func (m *Metrics) unlock() { m.mu.Unlock() }

func (m *Metrics) addWarning(s string) {
	m.lock()
	m.Warnings = append(m.Warnings, s)
	m.unlock()
}

func (m *Metrics) addError(err error) {
	m.lock()
	m.Errors = append(m.Errors, err.Error())
	m.unlock()
}
