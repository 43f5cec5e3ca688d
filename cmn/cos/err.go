// Package cos provides common low-level types and utilities for all hsort packages.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NVIDIA/hsort/cmn/debug"
)

// Errs collects distinct errors from concurrently running goroutines and keeps
// the first `max` of them.
type Errs struct {
	seen map[string]struct{}
	errs []error
	max  int
	mu   sync.Mutex
}

func NewErrs(maxErrs int) Errs {
	debug.Assert(maxErrs > 0)
	return Errs{seen: make(map[string]struct{}, maxErrs), errs: make([]error, 0, maxErrs), max: maxErrs}
}

// Add ignores an error whose message was added before.
func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	msg := err.Error()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.seen[msg]; ok {
		return
	}
	e.seen[msg] = struct{}{}
	if len(e.errs) < e.max {
		e.errs = append(e.errs, err)
	}
}

// JoinErr returns the number of distinct errors added along with the kept ones.
func (e *Errs) JoinErr() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cnt := len(e.seen)
	if cnt == 0 {
		return 0, nil
	}
	err := errors.Join(e.errs...)
	if dropped := cnt - len(e.errs); dropped > 0 {
		err = fmt.Errorf("%w\n(and %d more error%s)", err, dropped, Plural(dropped))
	}
	return cnt, err
}
