package mqtt

import (
	"testing"
	"time"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/rc"
)

// fakeMessage satisfies paho.Message for exercising onMessage without a
// live broker connection.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (f fakeMessage) Duplicate() bool   { return false }
func (f fakeMessage) Qos() byte         { return 1 }
func (f fakeMessage) Retained() bool    { return false }
func (f fakeMessage) Topic() string     { return f.topic }
func (f fakeMessage) MessageID() uint16 { return 0 }
func (f fakeMessage) Payload() []byte   { return f.payload }
func (f fakeMessage) Ack()              {}

func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	pool := buffer.NewPool()
	e, err := NewEndpoint(pool, "tcp://localhost:1883", "test", 3, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// A well-formed subscribed message is enqueued atomically onto the
// inbound triple.
func TestOnMessageEnqueuesWellFormedMessage(t *testing.T) {
	e := newTestEndpoint(t)
	e.onMessage(nil, fakeMessage{topic: "hapcan/node/1/button", payload: []byte(`{"state":"on"}`)})

	msg, ok, err := e.Inbound.Dequeue()
	if err != nil || !ok {
		t.Fatalf("expected a queued message, ok=%v err=%v", ok, err)
	}
	if msg.Topic != "hapcan/node/1/button" || string(msg.Payload) != `{"state":"on"}` {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if err := e.LastError(); err != nil {
		t.Fatalf("expected no last-error for a well-formed message, got %v", err)
	}
}

// Messages with a zero-length topic or payload are rejected and set
// last-error, without enqueuing.
func TestOnMessageRejectsZeroLengthTopicOrPayload(t *testing.T) {
	e := newTestEndpoint(t)
	e.onMessage(nil, fakeMessage{topic: "", payload: []byte("x")})

	if _, ok, _ := e.Inbound.Dequeue(); ok {
		t.Fatal("expected no enqueue for zero-length topic")
	}
	if rc.Of(e.LastError()) != rc.SocketOtherError {
		t.Fatal("expected last-error to be set after a rejected message")
	}

	e.onMessage(nil, fakeMessage{topic: "hapcan/node/1", payload: nil})
	if _, ok, _ := e.Inbound.Dequeue(); ok {
		t.Fatal("expected no enqueue for zero-length payload")
	}
}

// Last-error auto-resets to OK (nil) on read.
func TestLastErrorAutoResets(t *testing.T) {
	e := newTestEndpoint(t)
	e.onMessage(nil, fakeMessage{topic: "", payload: []byte("x")})

	if e.LastError() == nil {
		t.Fatal("expected a non-nil last-error on first read")
	}
	if e.LastError() != nil {
		t.Fatal("expected last-error to have reset to nil after being read")
	}
}
