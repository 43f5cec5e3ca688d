//go:build debug

// Package debug provides build-tagged asserts and debug-only helpers
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func Infof(f string, a ...any) {
	fmt.Fprintf(os.Stderr, "[DEBUG] "+f+"\n", a...)
}

func Assert(cond bool, a ...any) {
	if !cond {
		_panic(a...)
	}
}

func AssertNoErr(err error) {
	if err != nil {
		_panic(err)
	}
}

func Assertf(cond bool, f string, a ...any) {
	if !cond {
		_panic(fmt.Sprintf(f, a...))
	}
}

func _panic(a ...any) {
	var (
		sb    strings.Builder
		stack [8]uintptr
	)
	sb.WriteString("DEBUG PANIC")
	if len(a) > 0 {
		sb.WriteString(": ")
		sb.WriteString(fmt.Sprint(a...))
	}
	n := runtime.Callers(3, stack[:])
	frames := runtime.CallersFrames(stack[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "hsort") {
			break
		}
		fmt.Fprintf(&sb, "\n\t[%s:%d]", frame.File, frame.Line)
		if !more {
			break
		}
	}
	panic(sb.String())
}
