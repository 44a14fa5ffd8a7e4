package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vigil-mon/agent/internal/collector"
)

// SortKey selects the column a process listing is ordered by.
type SortKey string

const (
	SortPID    SortKey = "pid"
	SortName   SortKey = "name"
	SortCPU    SortKey = "cpu"
	SortMemory SortKey = "memory"
	SortRead   SortKey = "read"
	SortWrite  SortKey = "write"
)

// ParseSortKey maps a user-supplied column name to a SortKey, defaulting to
// CPU for anything unrecognized.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(s)) {
	case SortPID, SortName, SortCPU, SortMemory, SortRead, SortWrite:
		return SortKey(strings.ToLower(s))
	}
	return SortCPU
}

// DefaultDesc reports the natural direction for a column: numeric columns
// read top-down, pid and name read ascending.
func DefaultDesc(key SortKey) bool {
	switch key {
	case SortPID, SortName:
		return false
	}
	return true
}

// Filter returns the records whose name, command line, or pid contains query,
// case-insensitively. The result is always a fresh slice, so callers may sort
// it without reordering the published snapshot it came from.
func Filter(records []collector.ProcessRecord, query string) []collector.ProcessRecord {
	if query == "" {
		out := make([]collector.ProcessRecord, len(records))
		copy(out, records)
		return out
	}
	q := strings.ToLower(query)
	out := make([]collector.ProcessRecord, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.CommandLine), q) ||
			strings.Contains(strconv.Itoa(int(rec.PID)), q) {
			out = append(out, rec)
		}
	}
	return out
}

// Sort orders records by key in place. Ties always break on ascending pid so
// the ordering is stable across ticks regardless of direction.
func Sort(records []collector.ProcessRecord, key SortKey, desc bool) {
	sort.Slice(records, func(i, j int) bool {
		c := compareBy(&records[i], &records[j], key)
		if c == 0 {
			return records[i].PID < records[j].PID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareBy(a, b *collector.ProcessRecord, key SortKey) int {
	switch key {
	case SortPID:
		return int(a.PID) - int(b.PID)
	case SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortMemory:
		return compareUint(a.MemoryBytes, b.MemoryBytes)
	case SortRead:
		return compareUint(a.DiskReadDelta, b.DiskReadDelta)
	case SortWrite:
		return compareUint(a.DiskWriteDelta, b.DiskWriteDelta)
	default:
		switch {
		case a.CPUPercent < b.CPUPercent:
			return -1
		case a.CPUPercent > b.CPUPercent:
			return 1
		}
		return 0
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
