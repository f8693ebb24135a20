//go:build linux

// Package can implements the CAN endpoint manager: two channels (can0,
// can1), each independently connected to a raw SocketCAN socket, with a
// 100ms poll-driven reader loop and a queue-driven writer loop.
// Channels are always constructed through NewChannel individually -
// there is no shared zero-value array that could alias channel 0 and
// channel 1's state.
//
// Socket setup (AF_CAN/SOCK_RAW/CAN_RAW, SockaddrCAN bind) uses a plain
// raw socket and unix.Poll rather than an AF_PACKET ring-buffer receive
// path, since the reader loop here is an explicit poll(handle, timeout)
// step, not a throughput-optimized packet-ring sweep.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package can

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/cmn/cos"
	"github.com/alcp-iot/hapcanbridge/endpoint"
	"github.com/alcp-iot/hapcanbridge/hapcan"
	"github.com/alcp-iot/hapcanbridge/metrics"
	"github.com/alcp-iot/hapcanbridge/queue"
	"github.com/alcp-iot/hapcanbridge/rc"
)

const pollTimeoutMS = 100

// Channel is one CAN interface (can0 or can1): its own socket fd, state
// machine, and inbound/outbound buffer pairs.
type Channel struct {
	Name string

	mu    sync.Mutex
	fd    int
	State *endpoint.State

	Inbound  *queue.Pair // frames read from the bus, awaiting translation to MQTT
	Outbound *queue.Pair // frames to write to the bus, produced from MQTT commands
}

// NewChannel allocates a channel's buffer pairs from pool (standard
// capacity: 2000 elements) and wires OnSyncLoss to force the channel
// DISCONNECTED-with-flush whenever the two buffers in a pair diverge.
func NewChannel(name string, pool *buffer.Pool) (*Channel, error) {
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
	c := &Channel{Name: name, fd: -1, Inbound: inbound, Outbound: outbound}
	c.State = endpoint.New(inbound, outbound)
	inbound.OnSyncLoss = func() { c.State.Close(true) }
	outbound.OnSyncLoss = func() { c.State.Close(true) }
	metrics.BufferCapacity.WithLabelValues(name, "inbound").Set(buffer.MaxCapacity)
	metrics.BufferCapacity.WithLabelValues(name, "outbound").Set(buffer.MaxCapacity)
	return c, nil
}

// Connect acquires a raw SocketCAN handle bound to c.Name. If the
// channel was previously DISCONNECTED, connecting flushes both buffer
// pairs - a fresh bus implies stale queued data is no longer
// meaningful.
func (c *Channel) Connect() error {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}
	iface, err := net.InterfaceByName(c.Name)
	if err != nil {
		unix.Close(fd)
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}

	c.mu.Lock()
	c.fd = fd
	c.mu.Unlock()

	c.State.Connect()
	metrics.EndpointState.WithLabelValues(c.Name).Set(1)
	return nil
}

// Close releases the socket handle and transitions to DISCONNECTED,
// optionally flushing both buffer pairs.
func (c *Channel) Close(cleanBuffers bool) error {
	c.mu.Lock()
	fd := c.fd
	c.fd = -1
	c.mu.Unlock()

	if fd >= 0 {
		unix.Close(fd)
	}
	c.State.Close(cleanBuffers)
	metrics.EndpointState.WithLabelValues(c.Name).Set(0)
	return nil
}

// ReadOnce performs one poll(100ms)+recv cycle. TIMEOUT is a recoverable
// non-event; ERROR_FRAME frames are not enqueued; everything else is
// captured with a timestamp and enqueued atomically.
func (c *Channel) ReadOnce() error {
	c.mu.Lock()
	fd := c.fd
	c.mu.Unlock()
	if fd < 0 {
		return rc.New(rc.Closed)
	}

	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, pollTimeoutMS)
	if err != nil {
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}
	if n == 0 {
		return rc.New(rc.Timeout)
	}

	buf := make([]byte, rawSize)
	nr, err := unix.Read(fd, buf)
	if err != nil {
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}
	if nr != rawSize {
		return rc.New(rc.SocketOtherError)
	}

	ts := hapcan.NowMillis()
	frame := decodeRaw(buf)
	if frame.ErrorFlag {
		metrics.CANErrors.WithLabelValues(c.Name).Inc()
		return rc.New(rc.ErrorFrame)
	}

	if c.Inbound.Enqueue(buf, int64(ts)) {
		metrics.BufferOverflows.WithLabelValues(c.Name, "inbound").Inc()
	}
	metrics.BufferCount.WithLabelValues(c.Name, "inbound").Set(float64(c.Inbound.Count()))
	metrics.CANFramesRead.WithLabelValues(c.Name).Inc()
	return nil
}

// WriteOnce dequeues one outbound frame (if any) and writes it to the
// bus. NO_DATA is returned (not an error condition) when the outbound
// queue is empty.
func (c *Channel) WriteOnce() error {
	c.mu.Lock()
	fd := c.fd
	c.mu.Unlock()
	if fd < 0 {
		return rc.New(rc.Closed)
	}

	blob, _, ok, err := c.Outbound.Dequeue()
	if err != nil {
		return err
	}
	if !ok {
		return rc.New(rc.NoData)
	}
	metrics.BufferCount.WithLabelValues(c.Name, "outbound").Set(float64(c.Outbound.Count()))
	if _, err := unix.Write(fd, blob); err != nil {
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}
	metrics.CANFramesWritten.WithLabelValues(c.Name).Inc()
	return nil
}

// DecodeFrame exposes decodeRaw to callers (e.g. the supervisor's
// CAN->MQTT bridge loop) that need the structured hapcan.Frame from a
// raw blob popped off Inbound.
func DecodeFrame(blob []byte) hapcan.Frame { return decodeRaw(blob) }

// EncodeFrame serializes f for enqueue onto Outbound.
func EncodeFrame(f hapcan.Frame) []byte { return encodeRaw(f) }
