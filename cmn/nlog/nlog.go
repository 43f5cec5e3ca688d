// Package nlog - hsort logger, provides buffering, timestamping, writing, and
// flushing/syncing/rotating
/*
 * Copyright (c) 2023-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/NVIDIA/hsort/cmn/mono"
)

const (
	nlogBufSize  = 64 * 1024
	nlogLineSize = 4 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

type nlog struct {
	file *os.File
	pw   *fixed
	line fixed
	size int64
	last int64
	sev  severity
	mw   sync.Mutex
	err  error // fatal for this log; further writes go to stderr
}

var pool sync.Pool

func newNlog(sev severity) *nlog {
	return &nlog{
		sev:  sev,
		pw:   &fixed{buf: make([]byte, nlogBufSize)},
		line: fixed{buf: make([]byte, nlogLineSize)},
	}
}

// frames between the caller of Infof et al. and formatHdr
const (
	skipDirect   = 4              // formatHdr <- sprintf <- log <- Infof
	skipBuffered = skipDirect + 1 // ... <- printf <- log
)

func log(sev severity, format string, args ...any) {
	onceInitFiles.Do(initFiles)

	switch {
	case toStderr:
		fb := alloc()
		sprintf(fb, sev, skipDirect, format, args...)
		os.Stderr.Write(fb.bytes())
		free(fb)
	case alsoToStderr || sev >= sevWarn:
		fb := alloc()
		sprintf(fb, sev, skipDirect, format, args...)
		if alsoToStderr || sev >= sevErr {
			os.Stderr.Write(fb.bytes())
		}
		for _, s := range []severity{sevErr, sevInfo} {
			nlog := nlogs[s]
			nlog.mw.Lock()
			nlog.write(fb)
			nlog.mw.Unlock()
		}
		free(fb)
	default:
		// fast path
		nlogs[sevInfo].printf(sev, format, args...)
	}
}

func (nlog *nlog) printf(sev severity, format string, args ...any) {
	nlog.mw.Lock()
	nlog.line.reset()
	sprintf(&nlog.line, sev, skipBuffered, format, args...)
	nlog.write(&nlog.line)
	nlog.mw.Unlock()
}

func (nlog *nlog) flush(exit bool) {
	nlog.mw.Lock()
	if nlog.pw.woff > 0 {
		if exit || nlog.pw.avail() < nlogBufSize/2 || mono.Since(nlog.last) > 10*time.Second {
			nlog.drain()
		}
	}
	if exit && nlog.file != nil {
		nlog.file.Sync()
	}
	nlog.mw.Unlock()
}

// under mw-lock
func (nlog *nlog) write(line *fixed) {
	nlog.pw.Write(line.bytes())
	if nlog.pw.avail() > nlogLineSize {
		return
	}
	nlog.drain()
}

// under mw-lock
func (nlog *nlog) drain() {
	pw := nlog.pw
	if nlog.err != nil {
		os.Stderr.Write(pw.bytes())
	} else {
		n, err := nlog.file.Write(pw.bytes())
		if err != nil {
			nlog.err = err
			os.Stderr.WriteString(err.Error())
		}
		nlog.size += int64(n)
	}
	pw.reset()
	nlog.last = mono.NanoTime()

	if nlog.size >= MaxSize && nlog.err == nil {
		nlog.file.Close()
		nlog.err = nlog.rotate(time.Now())
		nlog.size = 0
	}
}

func (nlog *nlog) rotate(now time.Time) (err error) {
	var (
		s    = fmt.Sprintf("host %s, %s for %s/%s\n", host, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		snow = now.Format("2006/01/02 15:04:05")
	)
	if nlog.file, _, err = fcreate(sevText[nlog.sev], now); err != nil {
		return
	}
	if title == "" {
		_, err = nlog.file.WriteString("Started up at " + snow + ", " + s)
	} else {
		nlog.file.WriteString("Rotated at " + snow + ", " + s)
		_, err = nlog.file.WriteString(title)
	}
	return
}

//
// utils
//

func formatHdr(fb *fixed, s severity, skip int) {
	const char = "IWE"
	_, fn, ln, ok := runtime.Caller(skip)
	if !ok {
		return
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx > 0 {
		fn = fn[idx+1:]
	}
	fb.hdr(char[s], time.Now(), strings.TrimSuffix(fn, ".go"), ln)
}

func sprintf(fb *fixed, sev severity, skip int, format string, args ...any) {
	formatHdr(fb, sev, skip)
	if format == "" {
		fmt.Fprint(fb, args...)
	} else {
		fmt.Fprintf(fb, format, args...)
	}
	fb.eol()
}

//
// buffer pool for errors and warnings
//

func alloc() (fb *fixed) {
	if v := pool.Get(); v != nil {
		fb = v.(*fixed)
		fb.reset()
	} else {
		fb = &fixed{buf: make([]byte, nlogLineSize)}
	}
	return
}

func free(fb *fixed) { pool.Put(fb) }
