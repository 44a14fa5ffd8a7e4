package collector

import (
	"time"

	"github.com/vigil-mon/agent/internal/control"
)

// Status is the shared process-state vocabulary every platform report is
// normalized into.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSleeping  Status = "sleeping"
	StatusSuspended Status = "suspended"
	StatusZombie    Status = "zombie"
	StatusUnknown   Status = "unknown"
)

// ProcessRecord is one observed OS process. Pids are recycled by every OS, so
// identity across polls is (PID, StartTime), never PID alone.
type ProcessRecord struct {
	PID                int32                 `json:"pid"`
	ParentPID          int32                 `json:"parentPid,omitempty"`
	Name               string                `json:"name"`
	CommandLine        string                `json:"commandLine,omitempty"`
	CPUPercent         float64               `json:"cpuPercent"`
	MemoryBytes        uint64                `json:"memoryBytes"`
	VirtualMemoryBytes uint64                `json:"virtualMemoryBytes"`
	DiskReadDelta      uint64                `json:"diskReadDelta"`
	DiskWriteDelta     uint64                `json:"diskWriteDelta"`
	Status             Status                `json:"status"`
	Priority           control.PriorityLevel `json:"priority"`
	StartTime          time.Time             `json:"startTime"`
	MissingTicks       int                   `json:"missingTicks,omitempty"`
}

// SameIdentity reports whether other refers to the same OS process.
func (r *ProcessRecord) SameIdentity(other *ProcessRecord) bool {
	return r.PID == other.PID && r.StartTime.Equal(other.StartTime)
}

// Snapshot is one best-effort, point-in-time read of system and process state.
// All delta fields are bytes since the previous poll.
type Snapshot struct {
	Timestamp      time.Time       `json:"timestamp"`
	Elapsed        time.Duration   `json:"elapsed"`
	CPUPercent     float64         `json:"cpuPercent"`
	MemoryUsed     uint64          `json:"memoryUsed"`
	MemoryTotal    uint64          `json:"memoryTotal"`
	NetRecvDelta   uint64          `json:"netRecvDelta"`
	NetSentDelta   uint64          `json:"netSentDelta"`
	DiskReadDelta  uint64          `json:"diskReadDelta"`
	DiskWriteDelta uint64          `json:"diskWriteDelta"`
	Load1          float64         `json:"load1,omitempty"`
	Load5          float64         `json:"load5,omitempty"`
	Load15         float64         `json:"load15,omitempty"`
	Uptime         uint64          `json:"uptime,omitempty"`
	Processes      []ProcessRecord `json:"processes"`
	FailedReads    int             `json:"failedReads,omitempty"`
}

// MemoryPercent returns used memory as a percentage of total.
func (s *Snapshot) MemoryPercent() float64 {
	if s.MemoryTotal == 0 {
		return 0
	}
	return float64(s.MemoryUsed) * 100 / float64(s.MemoryTotal)
}
