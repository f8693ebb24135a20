package queue_test

import (
	"testing"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/queue"
)

func newTriple(t *testing.T, capacity int) *queue.Triple {
	t.Helper()
	p := buffer.NewPool()
	topic, err := p.New(capacity)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := p.New(capacity)
	if err != nil {
		t.Fatal(err)
	}
	stamp, err := p.New(capacity)
	if err != nil {
		t.Fatal(err)
	}
	return queue.NewTriple(topic, payload, stamp)
}

func TestTripleRoundTrip(t *testing.T) {
	tr := newTriple(t, 4)
	tr.Enqueue("hapcan/node/1/button", []byte(`{"state":"on"}`), 1000)
	msg, ok, err := tr.Dequeue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Topic != "hapcan/node/1/button" || string(msg.Payload) != `{"state":"on"}` || msg.Stamp != 1000 {
		t.Fatalf("round-trip mismatch: %+v", msg)
	}
}

func TestTripleCountInvariant(t *testing.T) {
	tr := newTriple(t, 3)
	for i := 0; i < 10; i++ {
		tr.Enqueue("t", []byte{byte(i)}, int64(i))
		if c := tr.Count(); c < 0 || c > 3 {
			t.Fatalf("count %d out of range", c)
		}
	}
}

func TestTripleFlush(t *testing.T) {
	tr := newTriple(t, 4)
	tr.Enqueue("t", []byte("p"), 1)
	tr.Flush()
	if c := tr.Count(); c != 0 {
		t.Fatalf("expected 0 after flush, got %d", c)
	}
}
