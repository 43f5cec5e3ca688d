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
	"strings"
	"sync"
	"time"
)

var (
	host    = "unknown"
	sevText = []string{sevInfo: "INFO", sevWarn: "WARNING", sevErr: "ERROR"}
)

var (
	nlogs [3]*nlog

	logDir string
	arg0   string
	hrole  string
	title  string

	toStderr     bool
	alsoToStderr bool
	verbose      bool

	pid int

	onceInitFiles sync.Once
	filesErr      error
)

func init() {
	pid = os.Getpid()
	arg0 = filepath.Base(os.Args[0])
	if h, err := os.Hostname(); err == nil {
		host = _shortHost(h)
	}
}

func initFiles() {
	if toStderr {
		return
	}
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), "hsortlogs")
	}
	if filesErr = fcreateAll(); filesErr != nil {
		// keep going on stderr
		fmt.Fprintf(os.Stderr, "nlog: unable to create logs in %q: %v\n", logDir, filesErr)
		toStderr = true
	}
}

func fcreateAll() error {
	now := time.Now()
	for _, sev := range []severity{sevInfo, sevErr} {
		nlog := newNlog(sev)
		if err := nlog.rotate(now); err != nil {
			return err
		}
		nlogs[sev] = nlog
	}
	return nil
}

func sname() string {
	if hrole != "" {
		return arg0 + "-" + hrole
	}
	return arg0
}

func _shortHost(hostname string) string {
	if before, _, ok := strings.Cut(hostname, "."); ok {
		return before
	}
	return hostname
}

func fcreate(tag string, t time.Time) (f *os.File, fname string, err error) {
	if err = os.MkdirAll(logDir, os.ModePerm); err != nil {
		return
	}
	name, link := logfname(tag, t)
	fname = filepath.Join(logDir, name)
	f, err = os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return
	}
	// re-symlink
	symlink := filepath.Join(logDir, link)
	os.Remove(symlink)
	os.Symlink(name, symlink)
	return
}

func logfname(tag string, t time.Time) (name, link string) {
	s := sname()
	name = fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d",
		s,
		host,
		tag,
		t.Month(),
		t.Day(),
		t.Hour(),
		t.Minute(),
		t.Second(),
		pid)
	return name, s + "." + tag
}
