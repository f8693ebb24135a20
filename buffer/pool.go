package buffer

import (
	"sync"

	"github.com/alcp-iot/hapcanbridge/rc"
)

// MaxBuffers and MaxCapacity are the ceilings a static array would once
// have enforced at compile time (30 buffer slots, 2000 elements each);
// Pool enforces them at runtime instead.
const (
	MaxBuffers  = 30
	MaxCapacity = 2000
)

// Pool is the process-wide buffer registry: a single owner (the
// supervisor) constructs one Pool and hands out *Buffer handles to
// endpoint constructors. There is no package-level mutable state - a
// Pool must be constructed explicitly.
type Pool struct {
	mu      sync.Mutex
	buffers []*Buffer
}

func NewPool() *Pool { return &Pool{buffers: make([]*Buffer, 0, MaxBuffers)} }

// New allocates and registers a buffer of the given capacity, returning
// an opaque handle. Capacity 0 or negative is rc.ParameterError;
// capacity above MaxCapacity and a pool already holding MaxBuffers
// buffers are both rc.AllocError.
func (p *Pool) New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, rc.New(rc.ParameterError)
	}
	if capacity > MaxCapacity {
		return nil, rc.New(rc.AllocError)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffers) >= MaxBuffers {
		return nil, rc.New(rc.AllocError)
	}
	b := newBuffer(capacity)
	p.buffers = append(p.buffers, b)
	return b, nil
}

// Len reports how many buffers are currently registered - used by the
// metrics sampler to report pool occupancy.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers)
}
