package observability

import (
	"testing"
	"time"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.Observe(StageStartToSpectating, 100*time.Millisecond)
	w.Observe(StageStartToSpectating, 300*time.Millisecond)
	w.Observe(StageStartToSpectating, 200*time.Millisecond)
	w.Observe("", time.Second)
	w.Observe(StageCommand, -time.Second)

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 200 {
		t.Fatalf("LastMS = %.2f, want 200", s.LastMS)
	}
	if s.P50MS != 200 {
		t.Fatalf("P50MS = %.2f, want 200", s.P50MS)
	}
	if s.AvgMS != 200 {
		t.Fatalf("AvgMS = %.2f, want 200", s.AvgMS)
	}
	if s.TargetP95MS != 500 {
		t.Fatalf("TargetP95MS = %.2f, want 500", s.TargetP95MS)
	}
}

func TestLatencyWindowWrapsRing(t *testing.T) {
	w := newLatencyWindow(2)
	for i := 1; i <= 5; i++ {
		w.Observe(StageCommand, time.Duration(i)*time.Millisecond)
	}
	s := w.Snapshot().Stages[0]
	if s.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", s.Samples)
	}
	if s.P50MS != 4.5 {
		t.Fatalf("P50MS = %.2f, want 4.5 from the last two samples", s.P50MS)
	}
}
