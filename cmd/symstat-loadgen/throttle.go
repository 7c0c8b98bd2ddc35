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
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// throttle hands out tokens on TokenChan at a steady, retunable rate:
// one token every 1/rate seconds, rather than a whole second's worth
// delivered in a burst. Workers receiving from TokenChan see an even
// trickle of permits instead of a thundering herd at the top of each
// second. Increase/Decrease let a live operator retune the rate
// without restarting the load generator.
type throttle struct {
	TokenChan chan bool

	mu   sync.Mutex
	rate int // tokens per second

	delivered atomic.Int64
}

func newThrottle(opsPerSecond int) *throttle {
	if opsPerSecond < 1 {
		opsPerSecond = 1
	}
	return &throttle{
		rate:      opsPerSecond,
		TokenChan: make(chan bool),
	}
}

func (t *throttle) Increase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rate += step(t.rate)
}

func (t *throttle) Decrease() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rate <= 1 {
		return
	}
	t.rate -= step(t.rate)
}

// step returns a 10% adjustment, never less than one token per second.
func step(rate int) int {
	delta := rate / 10
	if delta < 1 {
		delta = 1
	}
	return delta
}

func (t *throttle) currentInterval() time.Duration {
	t.mu.Lock()
	rate := t.rate
	t.mu.Unlock()
	return time.Second / time.Duration(rate)
}

// Run delivers one token per tick, where the tick interval is
// recomputed before every delivery so that Increase/Decrease take
// effect on the very next token rather than waiting for a
// once-a-second refill like a classic token bucket.
func (t *throttle) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(t.currentInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			select {
			case t.TokenChan <- true:
				t.delivered.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *throttle) String() string {
	t.mu.Lock()
	rate := t.rate
	t.mu.Unlock()
	return fmt.Sprintf("%d/s target, %d delivered", rate, t.delivered.Load())
}
