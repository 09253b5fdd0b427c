package observ

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBeginEndRecordsPhase(t *testing.T) {
	timer := NewTimer()
	idx := timer.Begin("load demo.rsn")
	timer.End(idx, "2 files")

	report := timer.Report()
	if len(report.Phases) != 1 {
		t.Fatalf("phases = %d, want 1", len(report.Phases))
	}
	p := report.Phases[0]
	if p.Name != "load demo.rsn" || p.Note != "2 files" || p.Count != 1 {
		t.Fatalf("phase = %+v", p)
	}
}

func TestEndIgnoresBadIndex(t *testing.T) {
	timer := NewTimer()
	timer.End(-1, "")
	timer.End(5, "")
	if got := timer.Report(); len(got.Phases) != 0 {
		t.Fatalf("phases = %+v, want none", got.Phases)
	}
}

func TestObserveAggregatesByName(t *testing.T) {
	timer := NewTimer()
	timer.Observe("borrow check", 2*time.Millisecond)
	timer.Observe("borrow check", 3*time.Millisecond)
	timer.Observe("usage patterns", time.Millisecond)

	report := timer.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(report.Phases))
	}
	bc := report.Phases[0]
	if bc.Name != "borrow check" || bc.Count != 2 {
		t.Fatalf("aggregated phase = %+v", bc)
	}
	if bc.DurationMS != 5 {
		t.Fatalf("duration = %v ms, want 5", bc.DurationMS)
	}
	if report.TotalMS != 6 {
		t.Fatalf("total = %v ms, want 6", report.TotalMS)
	}
}

func TestObserveIsSafeForConcurrentWorkers(t *testing.T) {
	timer := NewTimer()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.Observe("ownership graph", time.Microsecond)
		}()
	}
	wg.Wait()

	report := timer.Report()
	if len(report.Phases) != 1 || report.Phases[0].Count != 16 {
		t.Fatalf("report = %+v, want one phase with 16 samples", report.Phases)
	}
}

func TestSummaryListsPhasesAndTotal(t *testing.T) {
	timer := NewTimer()
	timer.Observe("usage patterns", time.Millisecond)
	timer.Observe("usage patterns", time.Millisecond)

	s := timer.Summary()
	if !strings.Contains(s, "usage patterns") || !strings.Contains(s, "total") {
		t.Fatalf("summary missing entries:\n%s", s)
	}
	if !strings.Contains(s, "(2 samples)") {
		t.Fatalf("summary missing sample count:\n%s", s)
	}
}
