// Package stats provides methods and functionality to register, track, log,
// and export metrics that, for the most part, include "counter" and "latency" kinds.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package stats

// metric names (Prometheus: namespace "hsort"; counters get the "_total" suffix)
const (
	Histograms     = "histograms"      // coarse histograms received by the coordinator
	DetailRequests = "detail_requests" // detailed-histogram requests served
	DetailEntries  = "detail_entries"  // detailed entries returned
	Refinements    = "refinements"     // resolver scatter/gather rounds
	Fragments      = "fragments"       // fragments delivered to destinations
	FragmentKeys   = "fragment_keys"   // keys delivered to destinations
	TransportBytes = "transport_bytes" // bytes on the wire, all endpoints
	KeysSorted     = "keys_sorted"     // keys sorted by sources and destinations

	PhaseSeconds = "phase_seconds" // histogram, by phase
	VerifyOK     = "verify_ok"     // gauge: 1 passed, 0 failed
)

const (
	KindCounter   = "counter"
	KindGauge     = "gauge"
	KindHistogram = "histogram"
)

const namespace = "hsort"

// Tracker is the metrics sink used by the distributed sort and its node roles.
type Tracker interface {
	Inc(name string)
	Add(name string, val int64)
	Set(name string, val int64)
	ObservePhase(phase string, seconds float64)
	Get(name string) int64
}
