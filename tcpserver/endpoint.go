//go:build linux

// Package tcpserver implements the TCP server endpoint manager: a
// lazily-created listener accepting exactly one client at a time
// (backlog 10), with poll-with-timeout implemented via an accept
// deadline on the listener and a read deadline on the accepted
// connection rather than a separate poll step. Writes carry no deadline.
//
// The listener and the accepted client are tracked as two distinct
// handles (listener survives across client disconnects; accepted does
// not) rather than collapsed into one, since the listener's own
// lifecycle - bind once, accept repeatedly - is independent of any one
// client's connection.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package tcpserver

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/cmn/cos"
	"github.com/alcp-iot/hapcanbridge/endpoint"
	"github.com/alcp-iot/hapcanbridge/hapcan"
	"github.com/alcp-iot/hapcanbridge/metrics"
	"github.com/alcp-iot/hapcanbridge/queue"
	"github.com/alcp-iot/hapcanbridge/rc"
)

// MaxFrameLen is the largest HAPCAN-over-TCP byte frame this endpoint
// expects - framing above the transport layer is the translator's
// concern, but a recv() beyond this length is defensively treated as
// OVERFLOW.
const MaxFrameLen = 15

const backlog = 10

// Endpoint is the bridge's single TCP_SERVER collaborator.
type Endpoint struct {
	Port string

	mu       sync.Mutex
	listener *net.TCPListener
	accepted net.Conn

	State *endpoint.State

	Inbound  *queue.Pair
	Outbound *queue.Pair
}

func NewEndpoint(pool *buffer.Pool, port string) (*Endpoint, error) {
	inData, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	inStamp, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	outData, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	outStamp, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}

	inbound := queue.NewPair(inData, inStamp)
	outbound := queue.NewPair(outData, outStamp)
	e := &Endpoint{Port: port, Inbound: inbound, Outbound: outbound}
	e.State = endpoint.New(inbound, outbound)
	inbound.OnSyncLoss = func() { e.State.Close(true) }
	outbound.OnSyncLoss = func() { e.State.Close(true) }
	return e, nil
}

// Open is idempotent once a client is accepted, lazily creates the
// listener on first call, then polls for one pending connection.
func (e *Endpoint) Open(timeout time.Duration) error {
	e.mu.Lock()
	if e.accepted != nil {
		e.mu.Unlock()
		return nil
	}
	if e.listener == nil {
		portNum, err := strconv.Atoi(e.Port)
		if err != nil {
			e.mu.Unlock()
			return rc.New(rc.ParameterError)
		}
		ln, err := listenTCP(portNum, backlog)
		if err != nil {
			e.mu.Unlock()
			return rc.Wrap(rc.SocketError, err)
		}
		e.listener = ln
	}
	ln := e.listener
	e.mu.Unlock()

	ln.SetDeadline(time.Now().Add(timeout))
	conn, err := ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return rc.New(rc.Timeout)
		}
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}

	e.mu.Lock()
	e.accepted = conn
	e.mu.Unlock()

	e.State.Connect()
	metrics.EndpointState.WithLabelValues("tcp").Set(1)
	return nil
}

// ReadOnce polls the accepted client and enqueues one frame. recv==0
// (io.EOF) means the peer closed: returns CLOSED, and buffers are
// deliberately NOT flushed here - the next Open -> Connect transition
// is what flushes them, so nothing queued before the close is
// delivered to the next client.
func (e *Endpoint) ReadOnce(timeout time.Duration) error {
	e.mu.Lock()
	conn := e.accepted
	e.mu.Unlock()
	if conn == nil {
		return rc.New(rc.Closed)
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, MaxFrameLen+1)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return rc.New(rc.Timeout)
		}
		e.closeAccepted(false)
		return rc.New(rc.Closed)
	}
	if n > MaxFrameLen {
		return rc.New(rc.Overflow)
	}

	ts := hapcan.NowMillis()
	e.Inbound.Enqueue(buf[:n], int64(ts))
	return nil
}

// WriteOnce dequeues one outbound frame and sends it; a short write is
// treated as an error.
func (e *Endpoint) WriteOnce() error {
	e.mu.Lock()
	conn := e.accepted
	e.mu.Unlock()
	if conn == nil {
		return rc.New(rc.Closed)
	}

	blob, _, ok, err := e.Outbound.Dequeue()
	if err != nil {
		return err
	}
	if !ok {
		return rc.New(rc.NoData)
	}
	n, werr := conn.Write(blob)
	if werr != nil {
		return rc.Wrap(cos.ClassifySocketErr(werr), werr)
	}
	if n != len(blob) {
		return rc.New(rc.SocketOtherError)
	}
	return nil
}

// closeAccepted drops only the accepted client, leaving the listener
// intact so a new client can connect on the next Open.
func (e *Endpoint) closeAccepted(cleanBuffers bool) {
	e.mu.Lock()
	conn := e.accepted
	e.accepted = nil
	e.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	e.State.Close(cleanBuffers)
	metrics.EndpointState.WithLabelValues("tcp").Set(0)
}

// Addr returns the listener's bound address, or nil if Open hasn't
// created one yet. Useful for logging and for tests using an ephemeral
// port ("0").
func (e *Endpoint) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Close closes both the listener and any accepted client.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	ln, conn := e.listener, e.accepted
	e.listener, e.accepted = nil, nil
	e.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if ln != nil {
		ln.Close()
	}
	e.State.Close(true)
	metrics.EndpointState.WithLabelValues("tcp").Set(0)
	return nil
}
