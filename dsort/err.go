// Package dsort implements histogram-driven distributed sort: coordinator-side partition
// resolution over per-source histograms, and the source and destination node roles.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package dsort

import (
	"errors"
	"fmt"
)

type (
	// received message has unexpected opcode, size, or layout
	ErrProtocol struct {
		err   error
		where string
	}
	// resolution cannot continue: data and histograms are inconsistent
	ErrInvariant struct {
		msg string
	}
	abortError struct {
		cause error
		uuid  string
	}
)

func newErrProtocol(where string, err error) *ErrProtocol {
	return &ErrProtocol{where: where, err: err}
}

func (e *ErrProtocol) Error() string { return "protocol violation: " + e.where + ": " + e.err.Error() }
func (e *ErrProtocol) Unwrap() error { return e.err }

func IsErrProtocol(err error) bool {
	var e *ErrProtocol
	return errors.As(err, &e)
}

func newErrInvariant(format string, a ...any) *ErrInvariant {
	return &ErrInvariant{msg: fmt.Sprintf(format, a...)}
}

func (e *ErrInvariant) Error() string { return "invariant violation: " + e.msg }

func IsErrInvariant(err error) bool {
	var e *ErrInvariant
	return errors.As(err, &e)
}

func newAbortError(uuid string, cause error) error { return &abortError{uuid: uuid, cause: cause} }

func (e *abortError) Error() string { return fmt.Sprintf("dsort[%s] was aborted: %v", e.uuid, e.cause) }
func (e *abortError) Unwrap() error { return e.cause }

func IsErrAborted(err error) bool {
	var e *abortError
	return errors.As(err, &e)
}
