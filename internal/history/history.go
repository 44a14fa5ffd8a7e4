package history

import (
	"sync"
	"time"
)

// Metric identifies one tracked system-wide time series.
type Metric string

const (
	MetricCPU       Metric = "cpu"
	MetricMemory    Metric = "memory"
	MetricNetRecv   Metric = "net_recv"
	MetricNetSent   Metric = "net_sent"
	MetricDiskRead  Metric = "disk_read"
	MetricDiskWrite Metric = "disk_write"
)

// Metrics lists every tracked series.
func Metrics() []Metric {
	return []Metric{
		MetricCPU,
		MetricMemory,
		MetricNetRecv,
		MetricNetSent,
		MetricDiskRead,
		MetricDiskWrite,
	}
}

// Sample is one scalar observation.
type Sample struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// ring is a fixed-capacity buffer; once full, each push overwrites the oldest
// sample.
type ring struct {
	buf   []Sample
	head  int // index of the oldest sample
	count int
}

func (r *ring) push(s Sample) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = s
		r.count++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) snapshot() []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Store holds one bounded ring per tracked metric. Single writer, any number
// of concurrent readers; readers always receive copies.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[Metric]*ring
}

// NewStore creates a store where every series holds at most capacity samples.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		series:   make(map[Metric]*ring),
	}
}

// Capacity returns the per-series sample limit.
func (s *Store) Capacity() int {
	return s.capacity
}

// Push appends a sample to the metric's series, evicting the oldest sample
// once the series is full. O(1), never fails.
func (s *Store) Push(metric Metric, value float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.series[metric]
	if !ok {
		r = &ring{buf: make([]Sample, s.capacity)}
		s.series[metric] = r
	}
	r.push(Sample{At: at, Value: value})
}

// Snapshot returns an ordered, immutable copy of the metric's series, oldest
// first. Safe to call while the writer keeps pushing.
func (s *Store) Snapshot(metric Metric) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[metric]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// SnapshotAll copies every non-empty series.
func (s *Store) SnapshotAll() map[Metric][]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Metric][]Sample, len(s.series))
	for metric, r := range s.series {
		out[metric] = r.snapshot()
	}
	return out
}

// Last returns the newest sample for the metric, if any.
func (s *Store) Last(metric Metric) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[metric]
	if !ok || r.count == 0 {
		return Sample{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}
