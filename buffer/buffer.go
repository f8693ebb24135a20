// Package buffer implements the bounded circular FIFO primitive used by
// every endpoint manager's inbound/outbound queues. It replaces a
// fixed-size-array-plus-integer-ID scheme with a process-wide Pool
// handing out opaque *Buffer handles, each checked against its capacity
// at registration time.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package buffer

import (
	"sync"

	"github.com/alcp-iot/hapcanbridge/cmn/debug"
)

// Buffer is a mutex-guarded circular FIFO of opaque byte-slice payloads.
// Every method takes and releases buf.mu internally, so external callers
// never see a partially-applied push/pop.
type Buffer struct {
	mu       sync.Mutex
	slots    [][]byte
	head     int // index of oldest element
	count    int
	capacity int
}

func newBuffer(capacity int) *Buffer {
	return &Buffer{slots: make([][]byte, capacity), capacity: capacity}
}

// Push appends blob to the tail. If the buffer is already at capacity,
// the oldest element is dropped to make room (drop-head overflow) and
// overflow reports true. size=0 pushes (blob == nil or len(blob) == 0)
// are legal and store a null payload.
func (b *Buffer) Push(blob []byte) (overflow bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tail := (b.head + b.count) % b.capacity
	if b.count == b.capacity {
		// drop oldest: advance head, tail slot we're about to write is the
		// one just vacated.
		b.slots[b.head] = nil
		b.head = (b.head + 1) % b.capacity
		tail = (b.head + b.count - 1) % b.capacity
		overflow = true
	} else {
		b.count++
	}
	b.slots[tail] = blob
	debug.Assert(b.count <= b.capacity, "buffer count exceeded capacity")
	return overflow
}

// PopSizeAndPop dequeues the oldest element atomically, collapsing a
// pop_size/pop pair (a latent lock-straddle footgun when split across
// two calls) into one call. ok is false on an empty buffer; ok is true
// with blob == nil for a previously-pushed size=0 element.
func (b *Buffer) PopSizeAndPop() (blob []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil, false
	}
	blob = b.slots[b.head]
	b.slots[b.head] = nil
	b.head = (b.head + 1) % b.capacity
	b.count--
	return blob, true
}

func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Buffer) Capacity() int { return b.capacity }

func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count == b.capacity
}

// Clean discards all pending elements and resets head/tail bookkeeping
// to zero.
func (b *Buffer) Clean() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.slots {
		b.slots[i] = nil
	}
	b.head, b.count = 0, 0
}

// Lock/Unlock let a caller hold b's own lock across several reads, as
// the inner lock of the state->pair->per-buffer ordering.
func (b *Buffer) Lock()   { b.mu.Lock() }
func (b *Buffer) Unlock() { b.mu.Unlock() }

// CountLocked reads count without taking b's lock. It is for callers
// that already serialize every Push/Pop on b: package queue's Pair and
// Triple call it under their own pair lock, through which all pushes
// and pops of their buffers go.
func (b *Buffer) CountLocked() int { return b.count }
