// Package rc defines the tagged result-code taxonomy used across every
// endpoint manager, replacing a C implementation's integer sentinels
// (BUFFER_ERROR=-1, BUFFER_WRONG_ID=-2, etc.): every operation returns a
// classified result, not an ad-hoc negative number, and there is no
// exception-style unwinding.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package rc

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code is a classification, not a type - several distinct failures can
// share a Code (e.g. both a refused and a reset connection are
// SocketError) while still being distinguishable via Error.Cause.
type Code int

const (
	OK Code = iota
	NoData
	ParameterError
	BufferError
	AllocError // returned by buffer.Pool.New when a requested capacity or
	// the number of registered buffers exceeds the pool's ceilings; kept
	// distinct from BufferError while still satisfying
	// errors.Is(err, BufferError) via Error.Is, see below.
	SocketError
	SocketOtherError
	ErrorFrame
	Timeout
	Closed
	Overflow
)

var names = [...]string{
	OK:               "OK",
	NoData:           "NO_DATA",
	ParameterError:   "PARAMETER_ERROR",
	BufferError:      "BUFFER_ERROR",
	AllocError:       "ALLOC_ERROR",
	SocketError:      "SOCKET_ERROR",
	SocketOtherError: "SOCKET_OTHER_ERROR",
	ErrorFrame:       "ERROR_FRAME",
	Timeout:          "TIMEOUT",
	Closed:           "CLOSED",
	Overflow:         "OVERFLOW",
}

func (c Code) String() string {
	if int(c) < len(names) && names[c] != "" {
		return names[c]
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error wraps a Code with an optional underlying cause: a classified
// result code, propagated without exceptions.
type Error struct {
	Code  Code
	cause error
}

func New(code Code) *Error { return &Error{Code: code} }

// Wrap attaches cause to code, first running it through
// pkg/errors.WithStack so the original transport failure (a short
// write, a failed connect, a broker disconnect) carries a stack trace
// from the point it was classified - the only place in this codebase a
// transport-level cause is attached to a rc.Error.
func Wrap(code Code, cause error) *Error {
	if cause != nil {
		cause = pkgerrors.WithStack(cause)
	}
	return &Error{Code: code, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code.String() + ": " + e.cause.Error()
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Cause satisfies github.com/pkg/errors' causer interface so
// pkgerrors.Cause(err) unwraps straight through to the root transport
// error, skipping both this wrapper and the intermediate WithStack.
func (e *Error) Cause() error { return e.cause }

// Is lets errors.Is(err, rc.BufferError) match an AllocError, folding
// allocation failures under BUFFER_ERROR for callers that don't care
// about the distinction, while this package still distinguishes them
// internally (see AllocError comment).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Code == AllocError && t.Code == BufferError
}

// Of extracts the Code from err, defaulting to OK for nil and
// SocketOtherError for an unclassified error (the transport-level
// failure catch-all).
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var rce *Error
	if e, ok := err.(*Error); ok {
		rce = e
	} else {
		return SocketOtherError
	}
	return rce.Code
}

// Recoverable reports whether err is absorbed inside the endpoint
// (TIMEOUT, NO_DATA, ERROR_FRAME) rather than bubbled to the supervisor
// for a close+reconnect.
func Recoverable(err error) bool {
	switch Of(err) {
	case OK, NoData, Timeout, ErrorFrame:
		return true
	default:
		return false
	}
}
