package symstat

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func appendAndWait(t *testing.T, d *Dispatcher, sym Symbol, values []float64) string {
	t.Helper()
	reply := make(chan string, 1)
	if err := d.Submit(context.Background(), sym, AppendBatchCommand{Values: values, Reply: reply}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case status := <-reply:
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for AppendBatch reply")
		return ""
	}
}

func statsAndWait(t *testing.T, d *Dispatcher, sym Symbol, k int) Stats {
	t.Helper()
	reply := make(chan Stats, 1)
	if err := d.Submit(context.Background(), sym, GetStatsCommand{K: k, Reply: reply}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case s := <-reply:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for GetStats reply")
		return Stats{}
	}
}

func TestDispatcherAppendAndQuery(t *testing.T) {
	testCases := []struct {
		desc   string
		values []float64
		k      int
		want   Stats
	}{
		{
			desc:   "last element only",
			values: []float64{1, 2, 3, 4, 5},
			k:      0,
			want:   Stats{Min: 5, Max: 5, Last: 5, Avg: 5, Var: 0},
		},
		{
			desc:   "whole stream",
			values: []float64{1, 2, 3, 4, 5},
			k:      1,
			want:   Stats{Min: 1, Max: 5, Last: 5, Avg: 3, Var: 2},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			d := NewDispatcher()
			status := appendAndWait(t, d, "AAPL", tC.values)
			if status != StatusBatchAdded {
				t.Fatalf("AppendBatch status = %q, want %q", status, StatusBatchAdded)
			}
			got := statsAndWait(t, d, "AAPL", tC.k)
			if !statsApproxEqual(got, tC.want) {
				t.Fatalf("GetStats(%d) = %+v, want %+v", tC.k, got, tC.want)
			}
		})
	}
}

func statsApproxEqual(a, b Stats) bool {
	const eps = 1e-9
	return math.Abs(a.Min-b.Min) < eps && math.Abs(a.Max-b.Max) < eps &&
		math.Abs(a.Last-b.Last) < eps && math.Abs(a.Avg-b.Avg) < eps && math.Abs(a.Var-b.Var) < eps
}

func TestDispatcherRejectsInvalidBatchSize(t *testing.T) {
	d := NewDispatcher()
	status := appendAndWait(t, d, "MSFT", nil)
	if status != StatusInvalidBatchSize {
		t.Fatalf("status = %q, want %q", status, StatusInvalidBatchSize)
	}

	oversize := make([]float64, MaxBatchSize+1)
	status = appendAndWait(t, d, "MSFT", oversize)
	if status != StatusInvalidBatchSize {
		t.Fatalf("status = %q, want %q", status, StatusInvalidBatchSize)
	}

	// Position must be unchanged: a follow-up query over an untouched
	// symbol should report no data.
	got := statsAndWait(t, d, "MSFT", 3)
	if diff := cmp.Diff(Stats{}, got); diff != "" {
		t.Fatalf("GetStats after rejected batches mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcherQueryOnUnseenSymbolReturnsZeroStats(t *testing.T) {
	d := NewDispatcher()
	got := statsAndWait(t, d, "NEW", 2)
	if diff := cmp.Diff(Stats{}, got); diff != "" {
		t.Fatalf("GetStats on unseen symbol mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcherPerSymbolIsolation(t *testing.T) {
	// Property 5: concurrent activity on one symbol must not affect
	// another symbol's observations or statistics.
	d := NewDispatcher()
	var wg sync.WaitGroup
	symbols := []Symbol{"AAPL", "GOOG", "MSFT", "TSLA"}
	for i, sym := range symbols {
		wg.Add(1)
		go func(sym Symbol, base float64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				appendAndWait(t, d, sym, []float64{base + float64(j)})
			}
		}(sym, float64(i*1000))
	}
	wg.Wait()

	for i, sym := range symbols {
		base := float64(i * 1000)
		got := statsAndWait(t, d, sym, 1) // 10^1 == 10 -> last 10 of 50
		if !floatEq64(got.Last, base+49) {
			t.Fatalf("%s: Last = %v, want %v", sym, got.Last, base+49)
		}
		if !floatEq64(got.Min, base+40) || !floatEq64(got.Max, base+49) {
			t.Fatalf("%s: min/max = %v/%v, want %v/%v", sym, got.Min, got.Max, base+40, base+49)
		}
	}
}

func floatEq64(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDispatcherFIFOOrderingPerSymbol(t *testing.T) {
	d := NewDispatcher()
	for i := 0; i < 100; i++ {
		status := appendAndWait(t, d, "ORDERED", []float64{float64(i)})
		if status != StatusBatchAdded {
			t.Fatalf("append %d: status = %q", i, status)
		}
	}
	got := statsAndWait(t, d, "ORDERED", 0)
	if !floatEq64(got.Last, 99) {
		t.Fatalf("Last = %v, want 99 (order was not preserved)", got.Last)
	}
}

func TestDispatcherShutdownDrainsInflightWork(t *testing.T) {
	d := NewDispatcher()
	appendAndWait(t, d, "SHUT", []float64{1, 2, 3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
