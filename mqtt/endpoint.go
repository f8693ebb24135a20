// Package mqtt implements the MQTT endpoint manager: broker
// connect/subscribe, an inbound Triple (subscription topic + payload +
// timestamp) fed by Paho's async callback, an outbound Triple (publish
// topic + payload + timestamp) drained by a QoS-1
// publish-acknowledgement worker with a configurable retries/timeout
// retry contract.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/cmn/cos"
	"github.com/alcp-iot/hapcanbridge/cmn/mono"
	"github.com/alcp-iot/hapcanbridge/endpoint"
	"github.com/alcp-iot/hapcanbridge/hapcan"
	"github.com/alcp-iot/hapcanbridge/metrics"
	"github.com/alcp-iot/hapcanbridge/queue"
	"github.com/alcp-iot/hapcanbridge/rc"
)

const connectTimeout = 5 * time.Second

// Endpoint is the bridge's single MQTT collaborator: one broker
// connection, one subscription set, and an inbound/outbound pair of
// Triples.
type Endpoint struct {
	Broker   string
	ClientID string
	Retries  int
	AckTimeout time.Duration

	client paho.Client
	State  *endpoint.State

	Inbound  *queue.Triple // subscribed messages awaiting translation to CAN
	Outbound *queue.Triple // translator-produced publishes awaiting broker ack

	lastErrMu sync.Mutex
	lastErr   error // subscribe-callback last error; auto-resets to OK on read
}

// NewEndpoint allocates both Triples (6 buffers: topic/payload/stamp x2)
// from pool at its standard capacity ceiling.
func NewEndpoint(pool *buffer.Pool, broker, clientID string, retries int, ackTimeout time.Duration) (*Endpoint, error) {
	inTopic, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	inPayload, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	inStamp, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	outTopic, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	outPayload, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}
	outStamp, err := pool.New(buffer.MaxCapacity)
	if err != nil {
		return nil, err
	}

	inbound := queue.NewTriple(inTopic, inPayload, inStamp)
	outbound := queue.NewTriple(outTopic, outPayload, outStamp)
	e := &Endpoint{Broker: broker, ClientID: clientID, Retries: retries, AckTimeout: ackTimeout,
		Inbound: inbound, Outbound: outbound}
	e.State = endpoint.New(inbound, outbound)
	inbound.OnSyncLoss = func() { e.State.Close(true) }
	outbound.OnSyncLoss = func() { e.State.Close(true) }
	metrics.BufferCapacity.WithLabelValues("mqtt", "inbound").Set(buffer.MaxCapacity)
	metrics.BufferCapacity.WithLabelValues("mqtt", "outbound").Set(buffer.MaxCapacity)
	return e, nil
}

// Connect dials the broker and subscribes to every topic in order. If
// the endpoint was previously DISCONNECTED, both Triples are flushed
// first as part of the CONNECTED transition.
func (e *Endpoint) Connect(topics []string) error {
	opts := paho.NewClientOptions().
		AddBroker(e.Broker).
		SetClientID(e.ClientID).
		SetAutoReconnect(true).
		SetDefaultPublishHandler(e.onMessage).
		SetConnectionLostHandler(e.onConnectionLost)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return rc.New(rc.Timeout)
	}
	if err := token.Error(); err != nil {
		return rc.Wrap(cos.ClassifySocketErr(err), err)
	}

	for _, topic := range topics {
		subToken := client.Subscribe(topic, 1, nil)
		subToken.Wait()
		if err := subToken.Error(); err != nil {
			client.Disconnect(0)
			return rc.Wrap(cos.ClassifySocketErr(err), err)
		}
	}

	e.client = client
	e.State.Connect()
	metrics.EndpointState.WithLabelValues("mqtt").Set(1)
	return nil
}

// onMessage is Paho's subscribe callback: messages with a zero-length
// topic or zero-length payload are rejected (last-error set to
// SocketOtherError, nothing enqueued); otherwise the timestamp is
// captured and the triple enqueued atomically.
func (e *Endpoint) onMessage(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	payload := msg.Payload()
	if topic == "" || len(payload) == 0 {
		e.setLastErr(rc.New(rc.SocketOtherError))
		return
	}
	ts := hapcan.NowMillis()
	if e.Inbound.Enqueue(topic, payload, int64(ts)) {
		metrics.BufferOverflows.WithLabelValues("mqtt", "inbound").Inc()
	}
	metrics.BufferCount.WithLabelValues("mqtt", "inbound").Set(float64(e.Inbound.Count()))
}

// onConnectionLost is Paho's disconnect callback. It drives the
// endpoint to DISCONNECTED without flushing buffers - the flush
// happens on the next CONNECTED transition, not on disconnect.
func (e *Endpoint) onConnectionLost(_ paho.Client, err error) {
	metrics.EndpointState.WithLabelValues("mqtt").Set(0)
	e.State.Close(false)
}

func (e *Endpoint) setLastErr(err error) {
	e.lastErrMu.Lock()
	e.lastErr = err
	e.lastErrMu.Unlock()
}

// LastError returns the last subscribe-callback error and resets it to
// OK (nil): last-error is readable and auto-resets to OK on read.
func (e *Endpoint) LastError() error {
	e.lastErrMu.Lock()
	defer e.lastErrMu.Unlock()
	err := e.lastErr
	e.lastErr = nil
	return err
}

// Close terminates the broker connection and optionally flushes all
// six MQTT buffers.
func (e *Endpoint) Close(flushBuffers bool) error {
	if e.client != nil {
		e.client.Disconnect(250)
		e.client = nil
	}
	e.State.Close(flushBuffers)
	metrics.EndpointState.WithLabelValues("mqtt").Set(0)
	return nil
}

// SetPub implements set_pub(topic, payload, payloadLen, ts): DISCONNECTED,
// empty topic, or empty payload all yield NO_DATA without enqueuing.
func (e *Endpoint) SetPub(topic string, payload []byte, ts int64) error {
	if !e.State.IsConnected() || topic == "" || len(payload) == 0 {
		return rc.New(rc.NoData)
	}
	if e.Outbound.Enqueue(topic, payload, ts) {
		metrics.BufferOverflows.WithLabelValues("mqtt", "outbound").Inc()
	}
	metrics.BufferCount.WithLabelValues("mqtt", "outbound").Set(float64(e.Outbound.Count()))
	return nil
}

// PublishOnce dequeues one outbound message (if any) and drives it
// through the QoS-1 ack retry contract. NO_DATA means the queue was
// empty; that is not an error.
func (e *Endpoint) PublishOnce() error {
	msg, ok, err := e.Outbound.Dequeue()
	if err != nil {
		return err
	}
	if !ok {
		return rc.New(rc.NoData)
	}
	metrics.BufferCount.WithLabelValues("mqtt", "outbound").Set(float64(e.Outbound.Count()))

	start := mono.NanoTime()
	token := e.client.Publish(msg.Topic, 1, false, msg.Payload)
	ackErr := pollForAck(token, e.Retries, e.AckTimeout)
	if ackErr == nil {
		metrics.MQTTPublishAckLatency.Observe(time.Duration(mono.NanoTime() - start).Seconds())
		return nil
	}
	if rc.Of(ackErr) == rc.Timeout {
		metrics.MQTTPublishTimeouts.Inc()
	}
	return ackErr
}
