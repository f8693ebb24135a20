// Package queue implements the BufferPair / BufferTriple primitives: N
// independent bounded buffers operated under one lock so that, outside a
// locked section, their element counts are always equal.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package queue

import (
	"sync"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/cmn/debug"
	"github.com/alcp-iot/hapcanbridge/rc"
)

// Pair couples a data buffer with its timestamp buffer under one lock.
// OnSyncLoss, if set, is invoked after the lock is released whenever
// Dequeue discovers the counts have diverged - the owning endpoint
// registers this at construction time to drive its own state
// transition to DISCONNECTED.
type Pair struct {
	mu         sync.Mutex
	data       *buffer.Buffer
	stamp      *buffer.Buffer
	OnSyncLoss func()
}

// NewPair wraps two pre-allocated buffers (typically obtained from a
// shared buffer.Pool) of matching capacity.
func NewPair(data, stamp *buffer.Buffer) *Pair {
	debug.Assertf(data.Capacity() == stamp.Capacity(), "pair capacity mismatch: %d != %d", data.Capacity(), stamp.Capacity())
	return &Pair{data: data, stamp: stamp}
}

// Enqueue pushes blob and ts atomically w.r.t. p's lock. Both pushes
// share the same overflow outcome because the two buffers are the same
// capacity and are always pushed together - if one drops its oldest
// element, so does the other, preserving count equality.
func (p *Pair) Enqueue(blob []byte, ts int64) (overflow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tsBlob := encodeTimestamp(ts)
	dOverflow := p.data.Push(blob)
	sOverflow := p.stamp.Push(tsBlob)
	debug.Assert(dOverflow == sOverflow, "pair overflow outcome diverged")
	return dOverflow
}

// Dequeue pops the oldest (data, timestamp) pair atomically. ok is false
// on an empty pair. If a consistency check finds the two buffers'
// element counts mismatched (which should never happen absent memory
// corruption or a programming error bypassing Pair), Dequeue flushes
// both buffers, returns rc.BufferError, and invokes OnSyncLoss outside
// the lock - a buffer-sync error is escalated identically to a
// transport error.
func (p *Pair) Dequeue() (blob []byte, ts int64, ok bool, err error) {
	p.mu.Lock()
	syncLost := p.data.CountLocked() != p.stamp.CountLocked()
	if syncLost {
		p.data.Clean()
		p.stamp.Clean()
		p.mu.Unlock()
		if p.OnSyncLoss != nil {
			p.OnSyncLoss()
		}
		return nil, 0, false, rc.New(rc.BufferError)
	}
	defer p.mu.Unlock()

	blob, gotData := p.data.PopSizeAndPop()
	tsBlob, gotStamp := p.stamp.PopSizeAndPop()
	debug.Assert(gotData == gotStamp, "pair pop outcome diverged")
	if !gotData {
		return nil, 0, false, nil
	}
	return blob, decodeTimestamp(tsBlob), true, nil
}

// Flush discards all pending elements from both buffers, used on
// endpoint reconnect.
func (p *Pair) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.Clean()
	p.stamp.Clean()
}

// Count returns the shared element count (data and stamp are always
// equal outside a locked section).
func (p *Pair) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.CountLocked()
}

func encodeTimestamp(ts int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(ts >> (8 * i))
	}
	return b
}

func decodeTimestamp(b []byte) int64 {
	var ts int64
	for i := 0; i < 8 && i < len(b); i++ {
		ts |= int64(b[i]) << (8 * i)
	}
	return ts
}
