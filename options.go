package symstat

import "go.opentelemetry.io/otel/metric"

const (
	// DefaultInboxSize is used by NewDispatcher if no WithInboxSize option
	// is provided.
	DefaultInboxSize = 100
	// DefaultInitialCapacity is used by NewDispatcher if no
	// WithInitialCapacity option is provided.
	DefaultInitialCapacity = 1024
)

// Options collects the tunables a Dispatcher and the workers it spawns
// are constructed with. Callers should not build this struct directly;
// use NewDispatcher with zero or more DispatcherOption values instead.
type Options struct {
	InboxSize       int
	InitialCapacity int
	Meter           metric.Meter
	StatsCache      StatsCache
}

// DispatcherOption configures a Dispatcher at construction time.
type DispatcherOption func(*Options)

// WithInboxSize sets the capacity of each symbol worker's inbound
// command channel. A worker that cannot keep up with its inbox will
// cause senders to block once it fills, which is the system's only
// form of backpressure.
//
// If this option isn't provided, DefaultInboxSize is used.
func WithInboxSize(size int) DispatcherOption {
	return func(o *Options) {
		o.InboxSize = size
	}
}

// WithInitialCapacity sets the number of leaves each newly spawned
// symbol's Aggregator is allocated with before it first needs to grow.
//
// If this option isn't provided, DefaultInitialCapacity is used.
func WithInitialCapacity(capacity int) DispatcherOption {
	return func(o *Options) {
		o.InitialCapacity = capacity
	}
}

// WithMeter attaches an OpenTelemetry Meter that workers and the
// Dispatcher use to record command counts, batch sizes, and registry
// size. If this option isn't provided, instruments are never created
// and no metrics are recorded.
func WithMeter(m metric.Meter) DispatcherOption {
	return func(o *Options) {
		o.Meter = m
	}
}

// WithStatsCache attaches a StatsCache that workers consult before
// computing a GetStats response and populate afterwards. If this
// option isn't provided, every GetStats command is served by a fresh
// Aggregator query.
func WithStatsCache(c StatsCache) DispatcherOption {
	return func(o *Options) {
		o.StatsCache = c
	}
}
