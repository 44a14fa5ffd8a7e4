package advisor

import (
	"strings"
	"testing"

	"github.com/vigil-mon/agent/internal/collector"
)

func TestSuggestTopCPUConsumer(t *testing.T) {
	in := Input{
		SystemCPU: 45,
		Processes: []collector.ProcessRecord{
			proc(1, "calm", 2),
			proc(2, "frantic", 40),
			proc(3, "modest", 10),
		},
	}

	got := Suggest(in)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %v", len(got), got)
	}
	if !strings.Contains(got[0].Title, "frantic") {
		t.Errorf("title %q should name the top consumer", got[0].Title)
	}
	if !strings.Contains(got[0].Detail, "pid 2") {
		t.Errorf("detail %q should carry the pid", got[0].Detail)
	}
}

func TestSuggestQuietSystemSaysNothing(t *testing.T) {
	in := Input{
		SystemCPU:     3,
		MemoryPercent: 10,
		Processes:     []collector.ProcessRecord{proc(1, "calm", 1)},
	}
	if got := Suggest(in); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSuggestMemoryPressureNamesTopRSS(t *testing.T) {
	in := Input{
		MemoryPercent: 35,
		Processes: []collector.ProcessRecord{
			{PID: 10, Name: "small", MemoryBytes: 100 << 20, CPUPercent: 5},
			{PID: 11, Name: "gigantic", MemoryBytes: 4 << 30, CPUPercent: 5},
		},
	}

	got := Suggest(in)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %v", len(got), got)
	}
	if !strings.Contains(got[0].Title, "gigantic") {
		t.Errorf("title %q should name the top RSS process", got[0].Title)
	}
}

func TestSuggestIdleHogs(t *testing.T) {
	in := Input{
		Processes: []collector.ProcessRecord{
			// Idle but huge: flagged.
			{PID: 20, Name: "sloth", MemoryBytes: 1 << 30, CPUPercent: 0.1},
			// Busy and huge: not an idle hog.
			{PID: 21, Name: "worker", MemoryBytes: 1 << 30, CPUPercent: 50},
			// Idle with heavy I/O: not an idle hog.
			{PID: 22, Name: "backup", MemoryBytes: 1 << 30, CPUPercent: 0.1, DiskWriteDelta: 10 << 20},
			// Idle and small: ignored.
			{PID: 23, Name: "tiny", MemoryBytes: 10 << 20, CPUPercent: 0.1},
		},
	}

	got := Suggest(in)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %v", len(got), got)
	}
	if !strings.Contains(got[0].Title, "sloth") {
		t.Errorf("title %q should name the idle hog", got[0].Title)
	}
}

func TestFmtBytes(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tc := range cases {
		if got := fmtBytes(tc.in); got != tc.want {
			t.Errorf("fmtBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
