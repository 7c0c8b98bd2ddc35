// symstat-server runs the per-symbol streaming statistics engine as a
// standalone HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/quantedge/symstat"
	"github.com/quantedge/symstat/internal/cache"
	"github.com/quantedge/symstat/internal/httpapi"
	"github.com/quantedge/symstat/internal/ingest"
	"github.com/quantedge/symstat/internal/obs"
)

var (
	addr             = flag.String("addr", ":3000", "Address to serve the HTTP API on.")
	inboxSize        = flag.Int("inbox_size", symstat.DefaultInboxSize, "Bounded channel size for each symbol worker's command inbox.")
	initialCapacity  = flag.Int("initial_capacity", symstat.DefaultInitialCapacity, "Initial Aggregator leaf capacity for each newly spawned symbol.")
	enableStatsCache = flag.Bool("enable_stats_cache", true, "Serve GetStats from an LRU result cache keyed by (symbol, k, position).")
	statsCacheSize   = flag.Int("stats_cache_size", 10_000, "Maximum number of entries in the GetStats result cache.")
	otelStdoutTrace  = flag.Bool("otel_stdout", false, "Emit OpenTelemetry traces to stdout. Metrics are always served at /metrics.")
	enableCoalescer  = flag.Bool("enable_coalescer", false, "Batch individual /v1/append values per symbol before submitting them to the dispatcher.")
	coalesceMaxAge   = flag.Duration("coalesce_max_age", 50*time.Millisecond, "Maximum time a value waits in the coalescer before being flushed.")
	coalesceMaxSize  = flag.Uint("coalesce_max_size", 200, "Maximum number of values the coalescer accumulates per symbol before flushing.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meter, shutdownObs, err := obs.Init(ctx, obs.Config{
		StdoutTrace:       *otelStdoutTrace,
		PrometheusMetrics: true,
	})
	if err != nil {
		klog.Exitf("obs.Init: %v", err)
	}
	defer func() {
		if err := shutdownObs(context.Background()); err != nil {
			klog.Errorf("observability shutdown: %v", err)
		}
	}()

	opts := []symstat.DispatcherOption{
		symstat.WithInboxSize(*inboxSize),
		symstat.WithInitialCapacity(*initialCapacity),
		symstat.WithMeter(meter),
	}
	if *enableStatsCache {
		opts = append(opts, symstat.WithStatsCache(cache.New(*statsCacheSize)))
	}
	dispatcher := symstat.NewDispatcher(opts...)

	var apiOpts []httpapi.Option
	var fabric *ingest.Fabric
	if *enableCoalescer {
		fabric = ingest.NewFabric(dispatcher, *coalesceMaxAge, *coalesceMaxSize)
		apiOpts = append(apiOpts, httpapi.WithIngest(fabric))
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: httpapi.New(dispatcher, apiOpts...).Mux(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		klog.Infof("symstat-server listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if fabric != nil {
			if err := fabric.Close(); err != nil {
				klog.Errorf("ingest fabric close: %v", err)
			}
		}
		return dispatcher.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		klog.Exitf("symstat-server: %v", err)
	}
}
