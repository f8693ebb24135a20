// Package main wires the core packages (buffer, queue, endpoint, can,
// mqtt, tcpserver, config, hapcan) into the running daemon: one
// supervisor goroutine group (a reader and a writer task per endpoint,
// plus translator tasks bridging inbound queues to the other
// endpoints' outbound queues, plus a dedicated reload-check task).
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package main

import (
	"context"
	"time"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/can"
	"github.com/alcp-iot/hapcanbridge/cmn/nlog"
	"github.com/alcp-iot/hapcanbridge/config"
	"github.com/alcp-iot/hapcanbridge/hapcan"
	"github.com/alcp-iot/hapcanbridge/hk"
	"github.com/alcp-iot/hapcanbridge/metrics"
	"github.com/alcp-iot/hapcanbridge/mqtt"
	"github.com/alcp-iot/hapcanbridge/rc"
	"github.com/alcp-iot/hapcanbridge/tcpserver"
	"golang.org/x/sync/errgroup"
)

const (
	reconnectBackoff      = time.Second
	idlePoll              = 10 * time.Millisecond
	openTimeout           = 200 * time.Millisecond
	reloadInterval        = 2 * time.Second
	metricsSampleInterval = 5 * time.Second
)

// Bridge owns every endpoint manager the supervisor drives. CAN1,
// MQTT, and TCP_SERVER are each optionally nil when their config flag
// is off; CAN0 is the one endpoint always present, since a bridge with
// no CAN side has nothing to translate.
type Bridge struct {
	pool *buffer.Pool

	can0 *can.Channel
	can1 *can.Channel // nil unless EnableCAN1

	mqttEP *mqtt.Endpoint // nil unless EnableMQTT
	tcpEP  *tcpserver.Endpoint // nil unless EnableSocketServer

	translator hapcan.Translator
	watcher    *config.Watcher
}

// New constructs every endpoint manager named by cfg. Bridge is the
// single owner of the buffer.Pool: it constructs the pool once and
// passes it into each endpoint constructor, rather than letting every
// endpoint allocate its own.
func New(cfg *config.Config, watcher *config.Watcher, translator hapcan.Translator) (*Bridge, error) {
	pool := buffer.NewPool()

	can0, err := can.NewChannel("can0", pool)
	if err != nil {
		return nil, err
	}

	b := &Bridge{pool: pool, can0: can0, translator: translator, watcher: watcher}

	if cfg.EnableCAN1 {
		can1, err := can.NewChannel("can1", pool)
		if err != nil {
			return nil, err
		}
		b.can1 = can1
	}
	if cfg.EnableMQTT {
		retries := cfg.MQTTRetries
		ackTimeout := time.Duration(cfg.MQTTAckTimeoutMS) * time.Millisecond
		mqttEP, err := mqtt.NewEndpoint(pool, cfg.MQTTBroker, cfg.MQTTClientID, retries, ackTimeout)
		if err != nil {
			return nil, err
		}
		b.mqttEP = mqttEP
	}
	if cfg.EnableSocketServer {
		tcpEP, err := tcpserver.NewEndpoint(pool, cfg.SocketServerPort)
		if err != nil {
			return nil, err
		}
		b.tcpEP = tcpEP
	}
	return b, nil
}

// Run starts every reader/writer/translator/housekeeping task and
// blocks until ctx is cancelled or a task returns a non-context error.
// errgroup.Group propagates the first fatal task error and cancels the
// rest, so one broken goroutine brings the whole supervisor down
// instead of leaving the others running against a half-torn-down
// Bridge.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.canReaderLoop(ctx, b.can0) })
	g.Go(func() error { return b.canWriterLoop(ctx, b.can0) })
	if b.can1 != nil {
		g.Go(func() error { return b.canReaderLoop(ctx, b.can1) })
		g.Go(func() error { return b.canWriterLoop(ctx, b.can1) })
	}
	if b.mqttEP != nil {
		g.Go(func() error { return b.mqttConnectLoop(ctx) })
		g.Go(func() error { return b.mqttPublishLoop(ctx) })
		g.Go(func() error { return b.mqttToCANLoop(ctx) })
	}
	if b.tcpEP != nil {
		g.Go(func() error { return b.tcpOpenLoop(ctx) })
		g.Go(func() error { return b.tcpWriterLoop(ctx) })
		g.Go(func() error { return b.tcpToCANLoop(ctx) })
	}
	g.Go(func() error { return b.canToOutboundLoop(ctx, b.can0) })
	if b.can1 != nil {
		g.Go(func() error { return b.canToOutboundLoop(ctx, b.can1) })
	}
	g.Go(func() error { return b.reloadLoop(ctx) })
	g.Go(func() error { return b.metricsSamplerLoop(ctx) })

	return g.Wait()
}

//
// CAN reader/writer: poll(100ms) is already inside ReadOnce; the loop
// here only supplies the reconnect-on-error policy - the endpoint
// manager classifies a failure, the supervisor decides whether to
// retry in place or close and reconnect.
//

func (b *Bridge) canReaderLoop(ctx context.Context, ch *can.Channel) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !ch.State.IsConnected() {
			if err := ch.Connect(); err != nil {
				nlog.Warningf("can %s: connect failed: %v", ch.Name, err)
				if !sleepCtx(ctx, reconnectBackoff) {
					return nil
				}
				continue
			}
			nlog.Infof("can %s: connected", ch.Name)
		}
		if err := ch.ReadOnce(); err != nil {
			if rc.Recoverable(err) {
				if verbose && rc.Of(err) == rc.ErrorFrame {
					nlog.Infof("can %s: error-flagged frame skipped", ch.Name)
				}
				continue
			}
			nlog.Warningf("can %s: read error, reconnecting: %v", ch.Name, err)
			ch.Close(false)
		}
	}
}

func (b *Bridge) canWriterLoop(ctx context.Context, ch *can.Channel) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !ch.State.IsConnected() {
			if !sleepCtx(ctx, reconnectBackoff) {
				return nil
			}
			continue
		}
		if err := ch.WriteOnce(); err != nil {
			switch rc.Of(err) {
			case rc.NoData:
				if !sleepCtx(ctx, idlePoll) {
					return nil
				}
			default:
				nlog.Warningf("can %s: write error, reconnecting: %v", ch.Name, err)
				ch.Close(false)
			}
		}
	}
}

// canToOutboundLoop drains ch's inbound queue, decodes each frame, and
// fans it out to MQTT (publish) and the TCP client (mirror) - the
// three-way CAN/MQTT/TCP translation this whole bridge exists to do.
func (b *Bridge) canToOutboundLoop(ctx context.Context, ch *can.Channel) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		blob, ts, ok, err := ch.Inbound.Dequeue()
		if err != nil {
			nlog.Warningf("can %s: inbound sync error: %v", ch.Name, err)
			continue
		}
		if !ok {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}
		f := can.DecodeFrame(blob)
		if b.mqttEP != nil {
			if topic, payload, ok := b.translator.FrameToMQTT(f, hapcan.Timestamp(ts)); ok {
				if err := b.mqttEP.SetPub(topic, payload, ts); err != nil && rc.Of(err) != rc.NoData {
					nlog.Warningf("mqtt: set_pub failed: %v", err)
				}
			}
		}
		if b.tcpEP != nil {
			if wire, ok := b.translator.FrameToTCP(f); ok {
				b.tcpEP.Outbound.Enqueue(wire, ts)
			}
		}
	}
}

//
// MQTT connect/publish/translate loops.
//

func (b *Bridge) mqttConnectLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !b.mqttEP.State.IsConnected() {
			topics := config.GCO.Get().SubscribeTopics
			if err := b.mqttEP.Connect(topics); err != nil {
				nlog.Warningf("mqtt: connect failed: %v", err)
				if !sleepCtx(ctx, reconnectBackoff) {
					return nil
				}
				continue
			}
			nlog.Infof("mqtt: connected to %s", b.mqttEP.Broker)
		}
		if !sleepCtx(ctx, reconnectBackoff) {
			return nil
		}
	}
}

func (b *Bridge) mqttPublishLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !b.mqttEP.State.IsConnected() {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}
		if err := b.mqttEP.PublishOnce(); err != nil && rc.Of(err) != rc.NoData {
			nlog.Warningf("mqtt: publish error: %v", err)
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
		}
	}
}

func (b *Bridge) mqttToCANLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		msg, ok, err := b.mqttEP.Inbound.Dequeue()
		if err != nil {
			nlog.Warningf("mqtt: inbound sync error: %v", err)
			continue
		}
		if !ok {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}
		if f, ok := b.translator.MQTTToFrame(msg.Topic, msg.Payload); ok {
			b.can0.Outbound.Enqueue(can.EncodeFrame(f), msg.Stamp)
		}
	}
}

//
// TCP server open/writer/translate loops.
//

func (b *Bridge) tcpOpenLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := b.tcpEP.Open(openTimeout); err != nil && rc.Of(err) != rc.Timeout {
			nlog.Warningf("tcp: open failed: %v", err)
			if !sleepCtx(ctx, reconnectBackoff) {
				return nil
			}
			continue
		}
		if err := b.tcpEP.ReadOnce(openTimeout); err != nil {
			switch rc.Of(err) {
			case rc.Timeout:
			case rc.Closed:
				nlog.Infof("tcp: peer closed")
			default:
				nlog.Warningf("tcp: read error: %v", err)
			}
		}
	}
}

func (b *Bridge) tcpWriterLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !b.tcpEP.State.IsConnected() {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}
		if err := b.tcpEP.WriteOnce(); err != nil && rc.Of(err) != rc.NoData {
			if rc.Of(err) != rc.Closed {
				nlog.Warningf("tcp: write error: %v", err)
			}
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
		}
	}
}

func (b *Bridge) tcpToCANLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		blob, ts, ok, err := b.tcpEP.Inbound.Dequeue()
		if err != nil {
			nlog.Warningf("tcp: inbound sync error: %v", err)
			continue
		}
		if !ok {
			if !sleepCtx(ctx, idlePoll) {
				return nil
			}
			continue
		}
		if f, ok := b.translator.TCPToFrame(blob); ok {
			b.can0.Outbound.Enqueue(can.EncodeFrame(f), ts)
		}
	}
}

// reloadLoop drives config hot-reload from a dedicated task via the hk
// housekeeper, and bounces only the affected endpoint on a targeted
// reload flag rather than restarting the whole bridge.
func (b *Bridge) reloadLoop(ctx context.Context) error {
	hk.Reg("config-reload", func() time.Duration {
		reloadMQTT, reloadSocket := b.watcher.Check()
		if reloadMQTT && b.mqttEP != nil {
			nlog.Infof("config: MQTT fields changed, bouncing endpoint")
			b.mqttEP.Close(false)
		}
		if reloadSocket && b.tcpEP != nil {
			nlog.Infof("config: socket-server fields changed, bouncing endpoint")
			b.tcpEP.Close()
		}
		return reloadInterval
	}, reloadInterval)
	<-ctx.Done()
	hk.Unreg("config-reload")
	return nil
}

// metricsSamplerLoop periodically reports buffer.Pool.Len() (see the
// pool's own doc comment: "used by the metrics sampler to report pool
// occupancy") as metrics.BufferPoolSize.
func (b *Bridge) metricsSamplerLoop(ctx context.Context) error {
	hk.Reg("metrics-sampler", func() time.Duration {
		metrics.BufferPoolSize.Set(float64(b.pool.Len()))
		return metricsSampleInterval
	}, metricsSampleInterval)
	<-ctx.Done()
	hk.Unreg("metrics-sampler")
	return nil
}

// sleepCtx sleeps for d or until ctx is cancelled, returning false in
// the latter case so callers can bail out of their loop immediately.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
