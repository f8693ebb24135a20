// Package endpoint provides the state machine shared by the CAN, MQTT,
// and TCP server endpoint managers: DISCONNECTED <-> CONNECTED, with
// buffer flush-on-reconnect semantics and a state-lock-before-pair-lock
// ordering so no caller ever has to reason about the two separately.
// Modeled on transport/bundle.Streams' lifecycle handling and
// transport.streamBase's terminate wiring.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package endpoint

import "sync"

type Status int32

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

// Flusher is satisfied by *queue.Pair and *queue.Triple; State holds its
// own mutex while calling Flush, so Flush must never call back into
// State directly (only via a registered OnSyncLoss-style callback fired
// after the pair's own lock is released).
type Flusher interface {
	Flush()
}

// State is the shared DISCONNECTED/CONNECTED machine for one endpoint
// (CAN0, CAN1, MQTT, or TCP_SERVER). It owns no transport handle itself
// - that lives in the endpoint-specific manager - but it is the single
// point that decides when registered buffer pairs get flushed, so every
// transition goes through here.
type State struct {
	mu     sync.Mutex
	status Status
	pairs  []Flusher
}

// New constructs a State that flushes the given pairs/triples whenever
// the endpoint transitions DISCONNECTED -> CONNECTED, and optionally on
// Close.
func New(pairs ...Flusher) *State {
	return &State{pairs: pairs}
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *State) IsConnected() bool { return s.Status() == Connected }

// Connect transitions to CONNECTED. If the endpoint was previously
// DISCONNECTED, every registered pair is flushed first - a freshly
// (re)acquired transport handle makes any data still queued from before
// the outage stale, so it's dropped rather than delivered late - and
// wasDisconnected reports whether that flush happened.
func (s *State) Connect() (wasDisconnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasDisconnected = s.status == Disconnected
	if wasDisconnected {
		for _, p := range s.pairs {
			p.Flush()
		}
	}
	s.status = Connected
	return wasDisconnected
}

// Close transitions to DISCONNECTED. cleanBuffers lets the caller
// choose whether buffers are dropped immediately or left alone until
// the next Connect, which flushes them as part of the DISCONNECTED ->
// CONNECTED transition (e.g. a TCP peer close).
func (s *State) Close(cleanBuffers bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Disconnected
	if cleanBuffers {
		for _, p := range s.pairs {
			p.Flush()
		}
	}
}
