package config

import "sync/atomic"

// owner is the Global Config Owner: an atomic.Pointer-backed read-mostly
// snapshot holder. Readers call GCO.Get() without taking a lock; the
// config Watcher is the writer, via GCO.Put in Load and after every
// reparse in Check.
type owner struct {
	ptr atomic.Pointer[Config]
}

// GCO is the process-wide config owner; cmd/hapcanbridge populates it
// (via Watcher.Load) before any endpoint manager starts. Until then Get
// returns Default().
var GCO = &owner{}

func (o *owner) Get() *Config {
	c := o.ptr.Load()
	if c == nil {
		return Default()
	}
	return c
}

func (o *owner) Put(c *Config) { o.ptr.Store(c) }
