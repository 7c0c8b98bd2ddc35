// symstat-loadgen drives synthetic read/write traffic against a
// running symstat-server, for manual load testing and demonstration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"k8s.io/klog/v2"
)

var (
	addr         = flag.String("addr", "http://localhost:3000", "Base URL of the symstat-server to hammer.")
	symbolsFlag  = flag.String("symbols", "AAPL,GOOG,MSFT,TSLA,AMZN", "Comma-separated symbols to generate traffic for.")
	numWriters   = flag.Int("num_writers", 4, "Number of concurrent writer goroutines.")
	numReaders   = flag.Int("num_readers", 4, "Number of concurrent reader goroutines.")
	maxWriteOps  = flag.Int("max_write_ops", 50, "Target write operations per second, in aggregate.")
	maxReadOps   = flag.Int("max_read_ops", 50, "Target read operations per second, in aggregate.")
	showUI       = flag.Bool("show_ui", true, "Show the live terminal dashboard. If false, logs go to stderr instead.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	symbols := strings.Split(*symbolsFlag, ",")
	if len(symbols) == 0 || symbols[0] == "" {
		klog.Exit("-symbols must name at least one symbol")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newClient(*addr)
	lg := newLoadGenerator(c, symbols, *maxWriteOps, *maxReadOps)
	lg.Run(ctx, *numWriters, *numReaders)

	if *showUI {
		newDashboard(lg).Run(ctx)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-lg.errChan:
			fmt.Println(err)
		}
	}
}
