// Package nlog - hsort logger, provides buffering, timestamping, writing, and
// flushing/syncing/rotating
/*
 * Copyright (c) 2023-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import "flag"

var (
	MaxSize int64 = 4 * 1024 * 1024
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
	flset.BoolVar(&verbose, "v", false, "verbose logging")
}

func Verbose() bool { return verbose }

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }

// SetLogDirRole must be called before the first log line; role becomes
// part of the log file names
func SetLogDirRole(dir, role string) { logDir, hrole = dir, role }
func SetTitle(s string)              { title = s }
func SetToStderr(v bool)             { toStderr = v }

// Flush writes out buffered lines; with exit==true it also closes the log files.
func Flush(exit bool) {
	for _, sev := range []severity{sevErr, sevInfo} {
		if nlog := nlogs[sev]; nlog != nil {
			nlog.flush(exit)
		}
	}
}
