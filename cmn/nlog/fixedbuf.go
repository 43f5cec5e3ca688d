// Package nlog - hsort logger, provides buffering, timestamping, writing, and
// flushing/syncing/rotating
/*
 * Copyright (c) 2023-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"io"
	"strconv"
	"time"
)

// fixed never grows: whatever does not fit is dropped
type fixed struct {
	buf  []byte
	woff int
}

var _ io.Writer = (*fixed)(nil)

func (fb *fixed) Write(p []byte) (int, error) {
	fb.woff += copy(fb.buf[fb.woff:], p)
	return len(p), nil
}

func (fb *fixed) bytes() []byte { return fb.buf[:fb.woff] }
func (fb *fixed) reset()        { fb.woff = 0 }
func (fb *fixed) avail() int    { return len(fb.buf) - fb.woff }

// "I 15:04:05.000000 manager:131 "
func (fb *fixed) hdr(sev byte, now time.Time, fn string, ln int) {
	var tmp [80]byte
	b := append(tmp[:0], sev, ' ')
	b = now.AppendFormat(b, "15:04:05.000000")
	b = append(b, ' ')
	b = append(b, fn...)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(ln), 10)
	b = append(b, ' ')
	fb.Write(b)
}

// a truncated line still ends with '\n'
func (fb *fixed) eol() {
	if fb.woff > 0 && fb.buf[fb.woff-1] == '\n' {
		return
	}
	if fb.avail() == 0 {
		fb.woff--
	}
	fb.buf[fb.woff] = '\n'
	fb.woff++
}
