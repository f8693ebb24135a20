//go:build debug

// Package debug provides assertions that compile out entirely unless built
// with -tags=debug.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package debug

import (
	"fmt"
	"sync"

	"github.com/alcp-iot/hapcanbridge/cmn/nlog"
)

func ON() bool { return true }

func Infof(format string, a ...any) { nlog.InfoDepth(1, fmt.Sprintf(format, a...)) }

func Func(f func()) { f() }

func Assert(cond bool, a ...any) {
	if !cond {
		panic(fmt.Sprintln(append([]any{"assertion failed:"}, a...)...))
	}
}

func AssertFunc(f func() bool, a ...any) { Assert(f(), a...) }

func AssertNoErr(err error) {
	if err != nil {
		panic("assertion failed: " + err.Error())
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, a...))
	}
}

// best-effort: sync.Mutex/sync.RWMutex expose no public "locked" introspection;
// these are no-ops kept for call-site parity with the !debug build.
func AssertMutexLocked(_ *sync.Mutex)      {}
func AssertRWMutexLocked(_ *sync.RWMutex)  {}
func AssertRWMutexRLocked(_ *sync.RWMutex) {}
