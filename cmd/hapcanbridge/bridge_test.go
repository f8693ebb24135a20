package main

import (
	"context"
	"testing"
	"time"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/can"
	"github.com/alcp-iot/hapcanbridge/hapcan"
	"github.com/alcp-iot/hapcanbridge/mqtt"
)

// TestCANToOutboundLoopPublishesToMQTT exercises the CAN->MQTT path
// end-to-end through canToOutboundLoop: a frame enqueued on can0's
// inbound buffer should be decoded, translated, and land on the MQTT
// endpoint's outbound queue ready for PublishOnce - without a real CAN
// socket or broker connection, both of which canToOutboundLoop never
// touches directly.
func TestCANToOutboundLoopPublishesToMQTT(t *testing.T) {
	pool := buffer.NewPool()

	can0, err := can.NewChannel("can0", pool)
	if err != nil {
		t.Fatalf("can.NewChannel: %v", err)
	}
	mqttEP, err := mqtt.NewEndpoint(pool, "tcp://unused:1883", "test-client", 3, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("mqtt.NewEndpoint: %v", err)
	}
	mqttEP.State.Connect() // SetPub requires CONNECTED; no real broker dial needed here

	b := &Bridge{pool: pool, can0: can0, mqttEP: mqttEP, translator: hapcan.Mock{}}

	frame := hapcan.Frame{ID: 0x123, Data: []byte{1, 2, 3}, Extended: true}
	can0.Inbound.Enqueue(can.EncodeFrame(frame), int64(hapcan.NowMillis()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		b.canToOutboundLoop(ctx, b.can0)
		close(done)
	}()

	deadline := time.After(150 * time.Millisecond)
	for {
		if mqttEP.Outbound.Count() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a translated message on mqttEP.Outbound within the deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	msg, ok, err := mqttEP.Outbound.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if !ok {
		t.Fatal("expected a dequeueable outbound message")
	}
	if msg.Topic != "hapcan/node/0/button" {
		t.Fatalf("unexpected topic: %q", msg.Topic)
	}
	if len(msg.Payload) == 0 {
		t.Fatal("expected non-empty JSON envelope payload")
	}

	cancel()
	<-done
}
