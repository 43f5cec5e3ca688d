// Package hist builds strided summaries (histograms) of sorted key sequences.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package hist

import (
	"fmt"

	"github.com/NVIDIA/hsort/cmn/debug"
)

// DetailStride is the item-exact resolution.
const DetailStride = 1

type (
	// Entry summarizes the sub-range [Start, Last] of a sorted sequence;
	// Value is the key at Start.
	Entry struct {
		Value uint32
		Start int64
		Last  int64
	}
	Histogram struct {
		Entries []Entry
		SID     uint32 // source that owns the summarized sequence
	}
)

func (e *Entry) Len() int64     { return e.Last - e.Start + 1 }
func (e *Entry) End() int64     { return e.Last + 1 }
func (e *Entry) String() string { return fmt.Sprintf("{%d [%d,%d]}", e.Value, e.Start, e.Last) }

// Build returns ceil(length/stride) entries over keys[offset:offset+length];
// the last entry may be shorter than stride. The sub-range must be sorted.
func Build(sid uint32, keys []uint32, offset, length, stride int64) *Histogram {
	debug.Assert(stride > 0, stride)
	debug.Assert(offset >= 0 && length >= 0 && offset+length <= int64(len(keys)), offset, length, len(keys))
	var (
		num = (length + stride - 1) / stride
		h   = &Histogram{SID: sid, Entries: make([]Entry, 0, num)}
		end = offset + length
	)
	for start := offset; start < end; start += stride {
		h.Entries = append(h.Entries, Entry{
			Value: keys[start],
			Start: start,
			Last:  min(start+stride, end) - 1,
		})
	}
	return h
}

// Clip intersects the requested inclusive range [first, last] with [0, n);
// returns the offset and length of the intersection (length zero when disjoint).
func Clip(first, last, n int64) (offset, length int64) {
	offset = max(first, 0)
	end := min(last+1, n)
	if end <= offset {
		return min(offset, n), 0
	}
	return offset, end - offset
}

// Detail builds an item-exact histogram over the clipped [first, last].
func Detail(sid uint32, keys []uint32, first, last int64) *Histogram {
	offset, length := Clip(first, last, int64(len(keys)))
	return Build(sid, keys, offset, length, DetailStride)
}

func (h *Histogram) Len() int { return len(h.Entries) }

// Span returns the number of items covered by all entries.
func (h *Histogram) Span() (n int64) {
	if l := len(h.Entries); l > 0 {
		n = h.Entries[l-1].End() - h.Entries[0].Start
	}
	return
}

// Validate checks that the entries are contiguous, cover [offset, offset+length)
// exactly once, and carry non-decreasing values.
func (h *Histogram) Validate(offset, length int64) error {
	next := offset
	for i := range h.Entries {
		e := &h.Entries[i]
		if e.Start != next {
			return fmt.Errorf("hist[%d]: entry %d %s: expected start %d", h.SID, i, e.String(), next)
		}
		if e.Last < e.Start {
			return fmt.Errorf("hist[%d]: entry %d %s is empty", h.SID, i, e.String())
		}
		if i > 0 && e.Value < h.Entries[i-1].Value {
			return fmt.Errorf("hist[%d]: entry %d %s: value decreases", h.SID, i, e.String())
		}
		next = e.End()
	}
	if next != offset+length {
		return fmt.Errorf("hist[%d]: covers [%d, %d), expected [%d, %d)", h.SID, offset, next, offset, offset+length)
	}
	return nil
}

func (h *Histogram) String() string {
	if len(h.Entries) == 0 {
		return fmt.Sprintf("hist[%d]: empty", h.SID)
	}
	first, last := &h.Entries[0], &h.Entries[len(h.Entries)-1]
	return fmt.Sprintf("hist[%d]: %d entries [%d, %d]", h.SID, len(h.Entries), first.Start, last.Last)
}
