package symstat

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"k8s.io/klog/v2"

	"github.com/quantedge/symstat/core"
)

// symbolWorker is the sole mutator of one symbol's Aggregator. It owns
// an inbox of Commands and processes them one at a time, in arrival
// order, for as long as the Dispatcher that spawned it keeps the
// inbox open.
type symbolWorker struct {
	symbol Symbol
	inbox  chan Command
	done   chan struct{}
	agg    *core.Aggregator
	cache  StatsCache

	metricsOnce sync.Once
	meter       metric.Meter
	appended    metric.Int64Counter
	rejected    metric.Int64Counter
	queried     metric.Int64Counter
	batchSize   metric.Int64Histogram
}

// newSymbolWorker constructs a worker for symbol with the given inbox
// capacity and initial Aggregator capacity, then starts its run loop
// in a new goroutine. The caller retains the returned worker's inbox
// channel as the sole means of communicating with it.
func newSymbolWorker(symbol Symbol, opts Options) *symbolWorker {
	w := &symbolWorker{
		symbol: symbol,
		inbox:  make(chan Command, opts.InboxSize),
		done:   make(chan struct{}),
		agg:    core.NewAggregatorWithCapacity(opts.InitialCapacity),
		cache:  opts.StatsCache,
		meter:  opts.Meter,
	}
	if w.meter != nil {
		w.initMetrics()
	}
	go w.run()
	return w
}

// initMetrics lazily creates this worker's instruments. Failures are
// logged, not fatal: a symbol that can't get metrics should still
// serve queries.
func (w *symbolWorker) initMetrics() {
	w.metricsOnce.Do(func() {
		var err error
		if w.appended, err = w.meter.Int64Counter("symstat_observations_appended_total",
			metric.WithDescription("Observations successfully appended, per symbol")); err != nil {
			klog.Errorf("symstat: observations_appended_total: %v", err)
		}
		if w.rejected, err = w.meter.Int64Counter("symstat_batches_rejected_total",
			metric.WithDescription("AppendBatch commands rejected for invalid size")); err != nil {
			klog.Errorf("symstat: batches_rejected_total: %v", err)
		}
		if w.queried, err = w.meter.Int64Counter("symstat_stats_queries_total",
			metric.WithDescription("GetStats commands served")); err != nil {
			klog.Errorf("symstat: stats_queries_total: %v", err)
		}
		if w.batchSize, err = w.meter.Int64Histogram("symstat_append_batch_size",
			metric.WithDescription("Size of accepted AppendBatch commands")); err != nil {
			klog.Errorf("symstat: append_batch_size: %v", err)
		}
	})
}

// run drains the inbox until it is closed, applying each Command to
// agg in turn. Nothing outside this goroutine ever touches agg, so no
// locking is required around it.
func (w *symbolWorker) run() {
	defer close(w.done)
	for cmd := range w.inbox {
		switch c := cmd.(type) {
		case AppendBatchCommand:
			w.handleAppend(c)
		case GetStatsCommand:
			w.handleGetStats(c)
		}
	}
}

func (w *symbolWorker) handleAppend(c AppendBatchCommand) {
	n := len(c.Values)
	if n < MinBatchSize || n > MaxBatchSize {
		if w.rejected != nil {
			w.rejected.Add(context.Background(), 1)
		}
		c.Reply <- StatusInvalidBatchSize
		return
	}
	w.agg.Append(c.Values)
	if w.appended != nil {
		w.appended.Add(context.Background(), int64(n))
	}
	if w.batchSize != nil {
		w.batchSize.Record(context.Background(), int64(n))
	}
	c.Reply <- StatusBatchAdded
}

func (w *symbolWorker) handleGetStats(c GetStatsCommand) {
	if w.queried != nil {
		w.queried.Add(context.Background(), 1)
	}
	if w.cache != nil {
		key := StatsCacheKey{Symbol: w.symbol, K: c.K, Position: w.agg.Position()}
		if s, ok := w.cache.Get(key); ok {
			c.Reply <- s
			return
		}
		s := w.statsFor(c.K)
		w.cache.Put(key, s)
		c.Reply <- s
		return
	}
	c.Reply <- w.statsFor(c.K)
}

// statsFor computes the Stats response for window exponent k from the
// current Aggregator state. A window with no observations yields the
// zero Stats value.
func (w *symbolWorker) statsFor(k int) Stats {
	s := w.agg.SuffixStats(k)
	if s.Count == 0 {
		return Stats{}
	}
	avg := s.Sum / float64(s.Count)
	return Stats{
		Min:  s.Min,
		Max:  s.Max,
		Last: s.Last,
		Avg:  avg,
		Var:  s.SumSquares/float64(s.Count) - avg*avg,
	}
}
