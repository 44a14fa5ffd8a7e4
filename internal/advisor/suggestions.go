package advisor

import (
	"fmt"

	"github.com/vigil-mon/agent/internal/collector"
)

// Suggestion is a derived, human-readable hint about a remediation the
// operator could take. Unlike alerts, suggestions carry no state: they are
// recomputed from scratch every tick.
type Suggestion struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

const (
	suggestCPUFloor   = 10.0         // system CPU% before naming the top consumer
	suggestMemFloor   = 20.0         // system memory% before naming the top consumer
	idleHogCPUCeil    = 0.5          // CPU% below which a process counts as idle
	idleHogIOCeil     = uint64(1024) // bytes/tick below which I/O counts as idle
	idleHogMemFloor   = 500 << 20    // RSS above which an idle process is a hog
	maxIdleHogReports = 5            // keep the list short
)

// Suggest derives advice from the current tick's view.
func Suggest(in Input) []Suggestion {
	var out []Suggestion

	if in.SystemCPU > suggestCPUFloor {
		if top, ok := topBy(in.Processes, func(r procView) float64 { return r.cpu }); ok {
			out = append(out, Suggestion{
				Title:  fmt.Sprintf("High CPU: %s at %.1f%%", top.name, top.cpu),
				Detail: fmt.Sprintf("Consider suspending or terminating pid %d if it is misbehaving.", top.pid),
			})
		}
	}

	if in.MemoryPercent > suggestMemFloor {
		if top, ok := topBy(in.Processes, func(r procView) float64 { return float64(r.mem) }); ok {
			out = append(out, Suggestion{
				Title:  fmt.Sprintf("Memory pressure: %s using %s", top.name, fmtBytes(top.mem)),
				Detail: fmt.Sprintf("Close unused applications or lower the priority of pid %d.", top.pid),
			})
		}
	}

	hogs := 0
	for _, rec := range in.Processes {
		if hogs >= maxIdleHogReports {
			break
		}
		if rec.CPUPercent < idleHogCPUCeil &&
			rec.DiskReadDelta+rec.DiskWriteDelta < idleHogIOCeil &&
			rec.MemoryBytes > idleHogMemFloor {
			out = append(out, Suggestion{
				Title:  fmt.Sprintf("Idle hog: %s holding %s", rec.Name, fmtBytes(rec.MemoryBytes)),
				Detail: fmt.Sprintf("You could lower its priority or close it. Pid %d.", rec.PID),
			})
			hogs++
		}
	}

	return out
}

type procView struct {
	pid  int32
	name string
	cpu  float64
	mem  uint64
}

func topBy(records []collector.ProcessRecord, score func(procView) float64) (procView, bool) {
	var best procView
	found := false
	for _, rec := range records {
		v := procView{pid: rec.PID, name: rec.Name, cpu: rec.CPUPercent, mem: rec.MemoryBytes}
		if !found || score(v) > score(best) {
			best = v
			found = true
		}
	}
	return best, found
}

func fmtBytes(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	unit := 0
	for size > 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, units[unit])
}
