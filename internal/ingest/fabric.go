package ingest

import (
	"sync"
	"time"

	"github.com/quantedge/symstat"
)

// Fabric lazily spawns one Coalescer per symbol, mirroring the
// Dispatcher's own registry: a symbol's Coalescer is created on first
// use and never torn down until the Fabric itself is closed.
type Fabric struct {
	dest    Submitter
	maxAge  time.Duration
	maxSize uint

	mu        sync.Mutex
	coalescer map[symstat.Symbol]*Coalescer
}

// NewFabric returns a Fabric that coalesces each symbol's observations
// using the given maxAge/maxSize, delivering flushed batches to dest.
func NewFabric(dest Submitter, maxAge time.Duration, maxSize uint) *Fabric {
	return &Fabric{
		dest:      dest,
		maxAge:    maxAge,
		maxSize:   maxSize,
		coalescer: make(map[symstat.Symbol]*Coalescer),
	}
}

// Push enqueues value for symbol, spawning that symbol's Coalescer if
// this is the first time it has been seen.
func (f *Fabric) Push(symbol symstat.Symbol, value float64) {
	f.mu.Lock()
	c, ok := f.coalescer[symbol]
	if !ok {
		c = New(symbol, f.dest, f.maxAge, f.maxSize)
		f.coalescer[symbol] = c
	}
	f.mu.Unlock()
	c.Push(value)
}

// Close flushes and closes every symbol's Coalescer.
func (f *Fabric) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for _, c := range f.coalescer {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
