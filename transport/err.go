// Package transport provides addressable in-process endpoints for intra-cluster
// communications: push/pull queues and request/reply exchanges between logical nodes.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
)

type (
	// peer did not respond within Extra.Timeout; recoverable (the caller decides
	// whether to abort the run)
	ErrTimeout struct {
		op      string
		addr    Addr
		timeout time.Duration
	}
	// malformed message header or body
	ErrBadSize struct {
		where            string
		expected, actual int
	}
)

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("%s %s: timed out after %v", e.op, e.addr, e.timeout)
}

func (*ErrTimeout) Timeout() bool { return true }

func IsErrTimeout(err error) bool {
	var e *ErrTimeout
	return errors.As(err, &e)
}

func (e *ErrBadSize) Error() string {
	return fmt.Sprintf("%s: bad message size %d (expected %d)", e.where, e.actual, e.expected)
}

func (n *Network) ctxErr(ctx context.Context, op string, addr Addr) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ErrTimeout{op: op, addr: addr, timeout: n.extra.Timeout}
	}
	return pkgerrors.Wrapf(ctx.Err(), "%s %s", op, addr)
}

func (n *Network) errHdr(where string, err error) error {
	return pkgerrors.Wrapf(err, "%s: %s: bad message header", n, where)
}
