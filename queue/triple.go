package queue

import (
	"sync"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/cmn/debug"
	"github.com/alcp-iot/hapcanbridge/rc"
)

// Triple couples topic, payload, and timestamp buffers under one lock,
// for MQTT's outbound/inbound queues.
type Triple struct {
	mu         sync.Mutex
	topic      *buffer.Buffer
	payload    *buffer.Buffer
	stamp      *buffer.Buffer
	OnSyncLoss func()
}

func NewTriple(topic, payload, stamp *buffer.Buffer) *Triple {
	debug.Assertf(topic.Capacity() == payload.Capacity() && payload.Capacity() == stamp.Capacity(),
		"triple capacity mismatch: %d/%d/%d", topic.Capacity(), payload.Capacity(), stamp.Capacity())
	return &Triple{topic: topic, payload: payload, stamp: stamp}
}

// Message is one dequeued (topic, payload, timestamp) element.
type Message struct {
	Topic   string
	Payload []byte
	Stamp   int64
}

func (t *Triple) Enqueue(topic string, payload []byte, ts int64) (overflow bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tOverflow := t.topic.Push([]byte(topic))
	pOverflow := t.payload.Push(payload)
	sOverflow := t.stamp.Push(encodeTimestamp(ts))
	debug.Assert(tOverflow == pOverflow && pOverflow == sOverflow, "triple overflow outcome diverged")
	return tOverflow
}

func (t *Triple) Dequeue() (msg Message, ok bool, err error) {
	t.mu.Lock()
	c := t.topic.CountLocked()
	syncLost := c != t.payload.CountLocked() || c != t.stamp.CountLocked()
	if syncLost {
		t.topic.Clean()
		t.payload.Clean()
		t.stamp.Clean()
		t.mu.Unlock()
		if t.OnSyncLoss != nil {
			t.OnSyncLoss()
		}
		return Message{}, false, rc.New(rc.BufferError)
	}
	defer t.mu.Unlock()

	topicBlob, gotTopic := t.topic.PopSizeAndPop()
	payloadBlob, gotPayload := t.payload.PopSizeAndPop()
	stampBlob, gotStamp := t.stamp.PopSizeAndPop()
	debug.Assert(gotTopic == gotPayload && gotPayload == gotStamp, "triple pop outcome diverged")
	if !gotTopic {
		return Message{}, false, nil
	}
	return Message{Topic: string(topicBlob), Payload: payloadBlob, Stamp: decodeTimestamp(stampBlob)}, true, nil
}

func (t *Triple) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topic.Clean()
	t.payload.Clean()
	t.stamp.Clean()
}

func (t *Triple) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topic.CountLocked()
}
