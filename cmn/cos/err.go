// Package cos provides low-level types and syscall-error classification
// utilities shared across the bridge's endpoint managers.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/alcp-iot/hapcanbridge/cmn/nlog"
	"github.com/alcp-iot/hapcanbridge/rc"
)

//
// Socket-error classification - used by can/mqtt/tcpserver to turn a raw
// transport error into the rc.Code their callers already switch on.
//

func isErrSyscallTimeout(err error) bool {
	var syscallErr *os.SyscallError
	return errors.As(err, &syscallErr) && syscallErr.Timeout()
}

func isRetriableConnErr(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// ClassifySocketErr maps a raw transport failure from a can/mqtt/tcpserver
// I/O call onto this bridge's rc.Code taxonomy: a syscall-level timeout
// becomes rc.Timeout (absorbed by the caller's own poll loop), a
// connection-level failure the peer can plausibly recover from (refused,
// reset, broken pipe) becomes rc.SocketError (the supervisor's
// close+reconnect path), and anything else falls back to
// rc.SocketOtherError.
func ClassifySocketErr(err error) rc.Code {
	switch {
	case err == nil:
		return rc.OK
	case isErrSyscallTimeout(err):
		return rc.Timeout
	case isRetriableConnErr(err):
		return rc.SocketError
	default:
		return rc.SocketOtherError
	}
}

//
// Abnormal termination - used by cmd/hapcanbridge for fatal startup errors.
//

const fatalPrefix = "FATAL ERROR: "

func Exitf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	_exit(msg)
}

func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.ErrorDepth(1, msg)
	_exit(msg)
}

func _exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
