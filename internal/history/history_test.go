package history

import (
	"testing"
	"time"
)

func ts(i int) time.Time {
	return time.UnixMilli(int64(i) * 700)
}

func TestSnapshotOrderedOldestFirst(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 5; i++ {
		s.Push(MetricCPU, float64(i), ts(i))
	}

	snap := s.Snapshot(MetricCPU)
	if len(snap) != 5 {
		t.Fatalf("len = %d, want 5", len(snap))
	}
	for i, sample := range snap {
		if sample.Value != float64(i) {
			t.Errorf("snap[%d].Value = %v, want %d", i, sample.Value, i)
		}
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	const capacity = 4
	s := NewStore(capacity)

	// capacity+1 pushes: the very first sample must be gone.
	for i := 0; i <= capacity; i++ {
		s.Push(MetricMemory, float64(i), ts(i))
	}

	snap := s.Snapshot(MetricMemory)
	if len(snap) != capacity {
		t.Fatalf("len = %d, want %d", len(snap), capacity)
	}
	if snap[0].Value == 0 {
		t.Error("oldest original sample should have been evicted")
	}
	if snap[0].Value != 1 || snap[capacity-1].Value != float64(capacity) {
		t.Errorf("window = [%v..%v], want [1..%d]", snap[0].Value, snap[capacity-1].Value, capacity)
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	s := NewStore(8)
	for i := 0; i < 100; i++ {
		s.Push(MetricNetRecv, float64(i), ts(i))
		if got := len(s.Snapshot(MetricNetRecv)); got > 8 {
			t.Fatalf("series grew to %d after %d pushes", got, i+1)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(4)
	s.Push(MetricCPU, 1, ts(0))

	snap := s.Snapshot(MetricCPU)
	snap[0].Value = 999

	if again := s.Snapshot(MetricCPU); again[0].Value != 1 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestLast(t *testing.T) {
	s := NewStore(3)

	if _, ok := s.Last(MetricDiskRead); ok {
		t.Error("empty series should have no last sample")
	}

	for i := 0; i < 7; i++ {
		s.Push(MetricDiskRead, float64(i), ts(i))
	}
	last, ok := s.Last(MetricDiskRead)
	if !ok || last.Value != 6 {
		t.Errorf("Last = %v (%v), want 6", last.Value, ok)
	}
}

func TestUnknownMetricSnapshot(t *testing.T) {
	s := NewStore(3)
	if snap := s.Snapshot(Metric("bogus")); snap != nil {
		t.Errorf("unknown metric should snapshot nil, got %v", snap)
	}
}

func TestConcurrentReadersWhileWriting(t *testing.T) {
	s := NewStore(16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.Push(MetricCPU, float64(i), ts(i))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
			snap := s.Snapshot(MetricCPU)
			if len(snap) > 16 {
				t.Fatalf("reader observed %d samples", len(snap))
			}
		}
	}
}
