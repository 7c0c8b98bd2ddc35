// Copyright 2024 The Tessera authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"math/rand"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"k8s.io/klog/v2"
)

// loadGenerator drives write and read traffic against a symstat-server
// across a fixed set of symbols, pacing itself with throttles and
// recording latency into moving averages the TUI can display.
type loadGenerator struct {
	c       *client
	symbols []string

	writeThrottle *throttle
	readThrottle  *throttle

	writeLatency *movingaverage.ConcurrentMovingAverage
	readLatency  *movingaverage.ConcurrentMovingAverage

	errChan chan error
}

func newLoadGenerator(c *client, symbols []string, maxWriteOps, maxReadOps int) *loadGenerator {
	const maSlots = 1000
	return &loadGenerator{
		c:             c,
		symbols:       symbols,
		writeThrottle: newThrottle(maxWriteOps),
		readThrottle:  newThrottle(maxReadOps),
		writeLatency:  movingaverage.New(maSlots),
		readLatency:   movingaverage.New(maSlots),
		errChan:       make(chan error, 64),
	}
}

// Run starts numWriters writer goroutines and numReaders reader
// goroutines, plus the throttles that pace them, and returns
// immediately. The goroutines stop when ctx is cancelled.
func (lg *loadGenerator) Run(ctx context.Context, numWriters, numReaders int) {
	go lg.writeThrottle.Run(ctx)
	go lg.readThrottle.Run(ctx)

	for i := 0; i < numWriters; i++ {
		go lg.writeLoop(ctx)
	}
	for i := 0; i < numReaders; i++ {
		go lg.readLoop(ctx)
	}
}

func (lg *loadGenerator) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-lg.writeThrottle.TokenChan:
			sym := lg.symbols[rand.Intn(len(lg.symbols))]
			values := randomBatch()
			start := time.Now()
			if err := lg.c.appendBatch(ctx, sym, values); err != nil {
				lg.reportError(err)
				continue
			}
			lg.writeLatency.Add(float64(time.Since(start).Milliseconds()))
		}
	}
}

func (lg *loadGenerator) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-lg.readThrottle.TokenChan:
			sym := lg.symbols[rand.Intn(len(lg.symbols))]
			k := rand.Intn(7)
			start := time.Now()
			if _, err := lg.c.getStats(ctx, sym, k); err != nil {
				lg.reportError(err)
				continue
			}
			lg.readLatency.Add(float64(time.Since(start).Milliseconds()))
		}
	}
}

func (lg *loadGenerator) reportError(err error) {
	select {
	case lg.errChan <- err:
	default:
		klog.Warningf("dropping error, channel full: %v", err)
	}
}

// randomBatch returns between 1 and 50 synthetic observations,
// matching a plausible tick-by-tick batch size.
func randomBatch() []float64 {
	n := 1 + rand.Intn(50)
	values := make([]float64, n)
	for i := range values {
		values[i] = rand.NormFloat64()*5 + 100
	}
	return values
}
