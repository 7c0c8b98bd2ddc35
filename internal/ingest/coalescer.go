// Package ingest provides an optional coalescing layer that sits in
// front of a Dispatcher. Instead of submitting every inbound
// observation batch directly, callers push individual observations
// into a Coalescer, which groups same-symbol observations that arrive
// within a short window into a single AppendBatch submission,
// amortising the per-command channel-send cost under high ingestion
// rates.
//
// Coalescing never reorders or merges batches across symbols, and
// never reorders batches within a symbol: the per-symbol FIFO
// guarantee the Dispatcher relies on is preserved.
package ingest

import (
	"context"
	"time"

	"github.com/globocom/go-buffer"

	"github.com/quantedge/symstat"
)

// Submitter is the subset of Dispatcher's API a Coalescer needs. It
// exists so tests can exercise the Coalescer without a real
// Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, symbol symstat.Symbol, cmd symstat.Command) error
}

// Coalescer batches AppendBatch submissions for a single symbol. One
// Coalescer instance owns exactly one symbol's queue; callers running
// many symbols through a coalescer construct one Coalescer per
// symbol, lazily, the same way a Dispatcher lazily spawns workers.
type Coalescer struct {
	symbol symstat.Symbol
	dest   Submitter
	buf    *buffer.Buffer
}

// New returns a Coalescer for symbol that flushes whenever the
// accumulated batch reaches maxSize entries or maxAge elapses since
// the oldest unflushed entry, whichever comes first.
func New(symbol symstat.Symbol, dest Submitter, maxAge time.Duration, maxSize uint) *Coalescer {
	c := &Coalescer{symbol: symbol, dest: dest}
	c.buf = buffer.New(
		buffer.WithSize(maxSize),
		buffer.WithFlushInterval(maxAge),
		buffer.WithFlusher(buffer.FlusherFunc(c.flush)),
	)
	return c
}

// Push enqueues a single observation for later coalesced delivery.
// Push never blocks on the Dispatcher; it only blocks as long as it
// takes to append to the in-memory buffer.
func (c *Coalescer) Push(value float64) {
	_ = c.buf.Push(value)
}

// flush is called by the underlying buffer, on its own goroutine,
// once per triggered batch. It issues a single AppendBatch submission
// covering every value accumulated since the last flush, in the order
// they were pushed.
func (c *Coalescer) flush(items []interface{}) {
	if len(items) == 0 {
		return
	}
	values := make([]float64, len(items))
	for i, v := range items {
		values[i] = v.(float64)
	}
	reply := make(chan string, 1)
	if err := c.dest.Submit(context.Background(), c.symbol, symstat.AppendBatchCommand{
		Values: values,
		Reply:  reply,
	}); err != nil {
		return
	}
	<-reply
}

// Close flushes any remaining buffered observations and releases the
// Coalescer's internal timer. After Close, Push must not be called
// again.
func (c *Coalescer) Close() error {
	if err := c.buf.Flush(); err != nil {
		return err
	}
	return c.buf.Close()
}
