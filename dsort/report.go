// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"time"

	"github.com/NVIDIA/hsort/cmn"
	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/cmn/jsp"
)

// RunReport describes a finished (or aborted) run.
type RunReport struct {
	Begin        time.Time     `json:"begin"`
	End          time.Time     `json:"end"`
	Config       *cmn.Config   `json:"config"`
	Metrics      *Metrics      `json:"metrics"`
	Verification *Verification `json:"verification,omitempty"`
	UUID         string        `json:"uuid"`
	Elapsed      cos.Duration  `json:"elapsed"`
	Seed         int64         `json:"seed,string"`
	Passed       bool          `json:"passed"`
}

func (m *Manager) newReport() *RunReport {
	return &RunReport{
		UUID:    m.UUID,
		Config:  m.config,
		Metrics: m.Metrics,
		Seed:    m.seed,
		Begin:   m.begin,
	}
}

func (r *RunReport) finalize(v *Verification) {
	r.End = time.Now()
	r.Elapsed = cos.Duration(r.End.Sub(r.Begin))
	r.Verification = v
	r.Passed = v != nil && v.Passed
}

// Save persists the report; see jsp.Options for compression and checksumming.
func (r *RunReport) Save(fpath string, opts jsp.Options) error { return jsp.Save(fpath, r, opts) }

func LoadReport(fpath string, opts jsp.Options) (*RunReport, error) {
	r := &RunReport{}
	if err := jsp.Load(fpath, r, opts); err != nil {
		return nil, err
	}
	return r, nil
}
