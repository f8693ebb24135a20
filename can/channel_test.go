//go:build linux

package can

import (
	"testing"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/rc"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	pool := buffer.NewPool()
	ch, err := NewChannel("can0", pool)
	if err != nil {
		t.Fatal(err)
	}
	return ch
}

// A channel that has never connected (fd < 0) reports CLOSED rather
// than attempting I/O on an invalid descriptor.
func TestReadWriteOnceBeforeConnectReturnsClosed(t *testing.T) {
	ch := newTestChannel(t)
	if err := ch.ReadOnce(); rc.Of(err) != rc.Closed {
		t.Fatalf("expected CLOSED before connect, got %v", err)
	}
	if err := ch.WriteOnce(); rc.Of(err) != rc.Closed {
		t.Fatalf("expected CLOSED before connect, got %v", err)
	}
}

// close(channel, cleanBuffers) flushes both pairs only when asked.
func TestCloseRespectsCleanBuffersFlag(t *testing.T) {
	ch := newTestChannel(t)
	ch.Inbound.Enqueue([]byte("frame"), 1)
	ch.Outbound.Enqueue([]byte("frame"), 1)

	ch.Close(false)
	if ch.Inbound.Count() != 1 || ch.Outbound.Count() != 1 {
		t.Fatal("expected Close(false) to leave buffers untouched")
	}

	ch.Close(true)
	if ch.Inbound.Count() != 0 || ch.Outbound.Count() != 0 {
		t.Fatal("expected Close(true) to flush both pairs")
	}
}

func TestNewChannelCan1HasIndependentName(t *testing.T) {
	pool := buffer.NewPool()
	ch, err := NewChannel("can1", pool)
	if err != nil {
		t.Fatal(err)
	}
	if ch.Name != "can1" {
		t.Fatalf("expected independent channel name, got %q", ch.Name)
	}
}
