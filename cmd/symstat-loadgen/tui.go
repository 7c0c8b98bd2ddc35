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
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"k8s.io/klog/v2"
)

// dashboard is a live terminal UI showing current throughput, latency
// and recent errors for a running loadGenerator. Its key bindings let
// an operator retune traffic shape without restarting the process.
type dashboard struct {
	lg         *loadGenerator
	app        *tview.Application
	statusView *tview.TextView
	logView    *tview.TextView
}

func newDashboard(lg *loadGenerator) *dashboard {
	d := &dashboard{lg: lg, app: tview.NewApplication()}

	grid := tview.NewGrid()
	grid.SetRows(6, 0, 2).SetColumns(0).SetBorders(true)

	statusView := tview.NewTextView()
	grid.AddItem(statusView, 0, 0, 1, 1, 0, 0, false)
	d.statusView = statusView

	logView := tview.NewTextView()
	logView.ScrollToEnd()
	logView.SetMaxLines(10000)
	grid.AddItem(logView, 1, 0, 1, 1, 0, 0, false)
	d.logView = logView

	helpView := tview.NewTextView()
	helpView.SetText("+/- write rate   >/< read rate   q quit")
	grid.AddItem(helpView, 2, 0, 1, 1, 0, 0, false)

	d.app.SetRoot(grid, true)
	return d
}

// Run blocks until the operator quits or ctx is cancelled.
func (d *dashboard) Run(ctx context.Context) {
	if err := flag.Set("logtostderr", "false"); err != nil {
		klog.Exitf("failed to set flag: %v", err)
	}
	klog.SetOutput(d.logView)

	go d.updateLoop(ctx, 500*time.Millisecond)
	go d.errorLoop(ctx)

	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case '+':
			d.lg.writeThrottle.Increase()
		case '-':
			d.lg.writeThrottle.Decrease()
		case '>':
			d.lg.readThrottle.Increase()
		case '<':
			d.lg.readThrottle.Decrease()
		case 'q':
			d.app.Stop()
		}
		return event
	})
	go func() {
		<-ctx.Done()
		d.app.Stop()
	}()
	if err := d.app.Run(); err != nil {
		klog.Errorf("dashboard exited: %v", err)
	}
}

func (d *dashboard) updateLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeLine := fmt.Sprintf("Write: %s, latency avg %.1fms", d.lg.writeThrottle.String(), d.lg.writeLatency.Avg())
			readLine := fmt.Sprintf("Read:  %s, latency avg %.1fms", d.lg.readThrottle.String(), d.lg.readLatency.Avg())
			symbolsLine := fmt.Sprintf("Symbols: %s", strings.Join(d.lg.symbols, ", "))
			d.statusView.SetText(strings.Join([]string{writeLine, readLine, symbolsLine}, "\n"))
			d.app.Draw()
		}
	}
}

func (d *dashboard) errorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-d.lg.errChan:
			fmt.Fprintf(d.logView, "%s error: %v\n", time.Now().Format(time.RFC3339), err)
		}
	}
}
