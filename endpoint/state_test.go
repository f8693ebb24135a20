package endpoint_test

import (
	"testing"

	"github.com/alcp-iot/hapcanbridge/endpoint"
)

type fakePair struct{ flushed int }

func (f *fakePair) Flush() { f.flushed++ }

func TestConnectFlushesOnlyFromDisconnected(t *testing.T) {
	p := &fakePair{}
	s := endpoint.New(p)

	if !s.Connect() {
		t.Fatal("expected wasDisconnected=true on first Connect")
	}
	if p.flushed != 1 {
		t.Fatalf("expected 1 flush, got %d", p.flushed)
	}
	if !s.IsConnected() {
		t.Fatal("expected CONNECTED after Connect")
	}

	// A second Connect while already CONNECTED must not re-flush.
	if s.Connect() {
		t.Fatal("expected wasDisconnected=false on second Connect")
	}
	if p.flushed != 1 {
		t.Fatalf("expected flush count unchanged at 1, got %d", p.flushed)
	}
}

func TestCloseRespectsCleanBuffersFlag(t *testing.T) {
	p := &fakePair{}
	s := endpoint.New(p)
	s.Connect()

	s.Close(false)
	if s.IsConnected() {
		t.Fatal("expected DISCONNECTED after Close")
	}
	if p.flushed != 1 {
		t.Fatalf("Close(false) must not flush, got %d flushes", p.flushed)
	}

	s.Connect()
	s.Close(true)
	if p.flushed != 3 {
		// 1 from first Connect, 1 from second Connect (was disconnected), 1 from Close(true)
		t.Fatalf("expected 3 flushes total, got %d", p.flushed)
	}
}

func TestReconnectAfterCloseFlushesAgain(t *testing.T) {
	p := &fakePair{}
	s := endpoint.New(p)
	s.Connect()
	s.Close(false)
	if !s.Connect() {
		t.Fatal("expected wasDisconnected=true after Close then Connect")
	}
	if p.flushed != 2 {
		t.Fatalf("expected 2 flushes (initial connect + reconnect), got %d", p.flushed)
	}
}
