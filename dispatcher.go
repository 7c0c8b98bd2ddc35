package symstat

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Dispatcher routes (Symbol, Command) envelopes to the one worker that
// owns each symbol, spawning a worker the first time a symbol is seen.
// The registry of symbol workers only ever grows: symbols are never
// forgotten once created, matching the spec's "never delete" lifecycle.
//
// The registry is owned exclusively by a single goroutine started in
// NewDispatcher, which drains Dispatcher's own inbox and is the only
// place a worker is ever created or looked up. Submit never touches
// the registry directly — it only ever sends an Envelope on that
// inbox — so worker creation is race-free without any lock: transport
// handlers calling Submit concurrently cannot observe or cause a
// torn registry, because none of them ever reaches into it.
//
// A Dispatcher must be constructed with NewDispatcher; the zero value
// is not usable.
type Dispatcher struct {
	opts  Options
	inbox chan Envelope
	done  chan struct{}

	registrySize metric.Int64UpDownCounter
}

// NewDispatcher returns a ready-to-use Dispatcher and starts its
// routing goroutine. Workers are spawned lazily, by that goroutine,
// the first time it sees a given symbol.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	o := Options{
		InboxSize:       DefaultInboxSize,
		InitialCapacity: DefaultInitialCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Dispatcher{
		opts:  o,
		inbox: make(chan Envelope, o.InboxSize),
		done:  make(chan struct{}),
	}
	if o.Meter != nil {
		if c, err := o.Meter.Int64UpDownCounter("symstat_registered_symbols",
			metric.WithDescription("Number of distinct symbols with a live worker")); err == nil {
			d.registrySize = c
		}
	}
	go d.run()
	return d
}

// Submit enqueues (symbol, cmd) on the Dispatcher's own inbox. It
// never looks at the worker registry and never blocks on a worker's
// inbox directly; the routing goroutine started by NewDispatcher does
// that forwarding. Submit blocks only if the Dispatcher's own inbox is
// full, which happens if that goroutine is itself stalled forwarding
// a previous envelope to a worker whose inbox is full — the same
// single point of backpressure the spec requires, just observed one
// hop upstream.
//
// ctx is honored only while waiting for the Dispatcher's inbox to
// accept the envelope; once accepted, the command is guaranteed to be
// forwarded even if ctx is later cancelled. Submit returns ctx.Err()
// if ctx is cancelled first.
func (d *Dispatcher) Submit(ctx context.Context, symbol Symbol, cmd Command) error {
	select {
	case d.inbox <- Envelope{Symbol: symbol, Command: cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the Dispatcher's sole goroutine. It owns the worker registry
// outright: every lookup, every spawn, and the eventual teardown all
// happen here, so nothing about the registry needs synchronization.
// Grounded on original_source/src/manager.rs's SymbolManager::run,
// which the same way forwards each (symbol, command) pair it receives
// to a lazily-spawned per-symbol task.
func (d *Dispatcher) run() {
	defer close(d.done)
	registry := make(map[Symbol]*symbolWorker)
	for env := range d.inbox {
		w, ok := registry[env.Symbol]
		if !ok {
			w = newSymbolWorker(env.Symbol, d.opts)
			registry[env.Symbol] = w
			if d.registrySize != nil {
				d.registrySize.Add(context.Background(), 1)
			}
		}
		w.inbox <- env.Command
	}
	for _, w := range registry {
		close(w.inbox)
	}
	for _, w := range registry {
		<-w.done
	}
}

// Shutdown closes the Dispatcher's inbox, which causes run to forward
// its remaining backlog, close every worker's inbox in turn, and wait
// for each worker to drain. Shutdown waits for that to finish or for
// ctx to be cancelled, whichever comes first. After Shutdown returns,
// no further Submit calls should be made.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.inbox)
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
