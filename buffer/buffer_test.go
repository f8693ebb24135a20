package buffer_test

import (
	"errors"
	"testing"

	"github.com/alcp-iot/hapcanbridge/buffer"
	"github.com/alcp-iot/hapcanbridge/rc"
)

func mustBuffer(t *testing.T, p *buffer.Pool, capacity int) *buffer.Buffer {
	t.Helper()
	b, err := p.New(capacity)
	if err != nil {
		t.Fatalf("Pool.New(%d): %v", capacity, err)
	}
	return b
}

// 0 ≤ count(B) ≤ capacity(B) at every point.
func TestCountWithinCapacity(t *testing.T) {
	p := buffer.NewPool()
	b := mustBuffer(t, p, 4)
	for i := 0; i < 10; i++ {
		b.Push([]byte{byte(i)})
		if c := b.Count(); c < 0 || c > b.Capacity() {
			t.Fatalf("count %d out of [0, %d]", c, b.Capacity())
		}
	}
}

// After Clean, count == 0 and the buffer behaves as freshly allocated.
func TestCleanResetsToZero(t *testing.T) {
	p := buffer.NewPool()
	b := mustBuffer(t, p, 4)
	b.Push([]byte("a"))
	b.Push([]byte("b"))
	b.Clean()
	if c := b.Count(); c != 0 {
		t.Fatalf("expected count 0 after Clean, got %d", c)
	}
	if _, ok := b.PopSizeAndPop(); ok {
		t.Fatal("expected empty buffer after Clean")
	}
}

// FIFO order is preserved absent overflow.
func TestFIFOOrder(t *testing.T) {
	p := buffer.NewPool()
	b := mustBuffer(t, p, 8)
	want := [][]byte{[]byte("x1"), []byte("x2"), []byte("x3")}
	for _, w := range want {
		if overflow := b.Push(w); overflow {
			t.Fatal("unexpected overflow")
		}
	}
	for _, w := range want {
		got, ok := b.PopSizeAndPop()
		if !ok {
			t.Fatal("expected element, got empty")
		}
		if string(got) != string(w) {
			t.Fatalf("FIFO violated: got %q want %q", got, w)
		}
	}
}

// After overflow of N items into a buffer of capacity C (N > C), the
// surviving items are exactly xN-C+1 ... xN in order.
func TestOverflowDropsHeadPreservesOrder(t *testing.T) {
	const capacity = 5
	const n = 12
	p := buffer.NewPool()
	b := mustBuffer(t, p, capacity)

	sawOverflow := false
	for i := 1; i <= n; i++ {
		if b.Push([]byte{byte(i)}) {
			sawOverflow = true
		}
	}
	if !sawOverflow {
		t.Fatal("expected at least one overflow")
	}
	if c := b.Count(); c != capacity {
		t.Fatalf("expected count == capacity (%d) after overflow, got %d", capacity, c)
	}
	for want := n - capacity + 1; want <= n; want++ {
		got, ok := b.PopSizeAndPop()
		if !ok {
			t.Fatalf("expected element %d, buffer empty", want)
		}
		if got[0] != byte(want) {
			t.Fatalf("overflow order violated: got %d want %d", got[0], want)
		}
	}
	if _, ok := b.PopSizeAndPop(); ok {
		t.Fatal("expected buffer drained after popping all survivors")
	}
}

// Push with size=0 stores a null payload; pop yields no bytes but
// ok==true (an element was in fact present).
func TestPushZeroSizeStoresNullPayload(t *testing.T) {
	p := buffer.NewPool()
	b := mustBuffer(t, p, 2)
	b.Push(nil)
	got, ok := b.PopSizeAndPop()
	if !ok {
		t.Fatal("expected an element to be present")
	}
	if len(got) != 0 {
		t.Fatalf("expected zero-length payload, got %d bytes", len(got))
	}
}

func TestIsFull(t *testing.T) {
	p := buffer.NewPool()
	b := mustBuffer(t, p, 2)
	if b.IsFull() {
		t.Fatal("fresh buffer reported full")
	}
	b.Push([]byte("a"))
	b.Push([]byte("b"))
	if !b.IsFull() {
		t.Fatal("expected buffer at capacity to report full")
	}
}

func TestPoolEnforcesCapacityCeiling(t *testing.T) {
	p := buffer.NewPool()
	if _, err := p.New(buffer.MaxCapacity + 1); !errors.Is(err, rc.New(rc.AllocError)) {
		t.Fatalf("expected AllocError for over-capacity buffer, got %v", err)
	}
	if _, err := p.New(0); rc.Of(err) != rc.ParameterError {
		t.Fatalf("expected ParameterError for zero capacity, got %v", err)
	}
}

func TestPoolEnforcesBufferCountCeiling(t *testing.T) {
	p := buffer.NewPool()
	for i := 0; i < buffer.MaxBuffers; i++ {
		if _, err := p.New(1); err != nil {
			t.Fatalf("buffer %d: unexpected error %v", i, err)
		}
	}
	if _, err := p.New(1); !errors.Is(err, rc.New(rc.AllocError)) {
		t.Fatalf("expected AllocError once pool is at MaxBuffers, got %v", err)
	}
	if got := p.Len(); got != buffer.MaxBuffers {
		t.Fatalf("expected pool length %d, got %d", buffer.MaxBuffers, got)
	}
}
