package collector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/vigil-mon/agent/internal/control"
	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("collector")

// ErrUnavailable means the system-wide query itself failed and no snapshot
// could be produced. The caller should skip the tick and keep its last state.
var ErrUnavailable = errors.New("system metrics unavailable")

// PartialError reports that some per-process reads failed (typically a race
// with process exit) while the rest of the snapshot is valid and returned.
type PartialError struct {
	Failed int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial collection: %d process reads failed", e.Failed)
}

// procKey disambiguates recycled pids.
type procKey struct {
	pid     int32
	startMS int64
}

// procBaseline holds the raw cumulative counters from the previous poll, used
// to turn monotonic totals into per-tick deltas.
type procBaseline struct {
	cpuSeconds float64
	readBytes  uint64
	writeBytes uint64
}

// Collector polls the OS for the full process list and system-wide counters.
// Not safe for concurrent use; the engine polls from a single goroutine.
type Collector struct {
	logicalCores int

	lastPoll  time.Time
	lastNet   [2]uint64 // recv, sent
	lastDisk  [2]uint64 // read, write
	netSeen   bool
	diskSeen  bool
	baselines map[procKey]procBaseline
}

func New() *Collector {
	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		cores = runtime.NumCPU()
	}
	return &Collector{
		logicalCores: cores,
		baselines:    make(map[procKey]procBaseline),
	}
}

// Poll performs one logically atomic pass over system and process state.
// Returns ErrUnavailable (and no snapshot) when a system-wide query fails, a
// *PartialError alongside the snapshot when only per-process reads failed.
func (c *Collector) Poll(ctx context.Context) (*Snapshot, error) {
	now := time.Now()
	elapsed := now.Sub(c.lastPoll)
	if c.lastPoll.IsZero() {
		elapsed = 0
	}

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(cpuPercents) == 0 {
		return nil, fmt.Errorf("cpu percent: %v: %w", err, ErrUnavailable)
	}
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %v: %w", err, ErrUnavailable)
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process list: %v: %w", err, ErrUnavailable)
	}

	snap := &Snapshot{
		Timestamp:   now,
		Elapsed:     elapsed,
		CPUPercent:  cpuPercents[0],
		MemoryUsed:  vmem.Used,
		MemoryTotal: vmem.Total,
	}

	c.collectNet(ctx, snap)
	c.collectDisk(ctx, snap)

	// Load average is unix-only and uptime can fail in containers; both are
	// decoration, not liveness.
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		snap.Load1, snap.Load5, snap.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		snap.Uptime = up
	}

	seen := make(map[procKey]struct{}, len(procs))
	snap.Processes = make([]ProcessRecord, 0, len(procs))
	for _, p := range procs {
		rec, key, ok := c.readProcess(ctx, p, elapsed)
		if !ok {
			snap.FailedReads++
			continue
		}
		seen[key] = struct{}{}
		snap.Processes = append(snap.Processes, rec)
	}

	// Drop baselines for processes that vanished so a recycled pid never
	// inherits a dead process's counters.
	for key := range c.baselines {
		if _, ok := seen[key]; !ok {
			delete(c.baselines, key)
		}
	}

	c.lastPoll = now

	if snap.FailedReads > 0 {
		log.Debug("partial collection", "failedReads", snap.FailedReads, "processes", len(snap.Processes))
		return snap, &PartialError{Failed: snap.FailedReads}
	}
	return snap, nil
}

// readProcess gathers one process. Name and start time are mandatory; anything
// else is best-effort because the process can exit mid-read.
func (c *Collector) readProcess(ctx context.Context, p *process.Process, elapsed time.Duration) (ProcessRecord, procKey, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ProcessRecord{}, procKey{}, false
	}
	startMS, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return ProcessRecord{}, procKey{}, false
	}

	rec := ProcessRecord{
		PID:       p.Pid,
		Name:      name,
		StartTime: time.UnixMilli(startMS),
		Status:    StatusUnknown,
		Priority:  control.PriorityNormal,
	}
	key := procKey{pid: p.Pid, startMS: startMS}

	if ppid, err := p.PpidWithContext(ctx); err == nil {
		rec.ParentPID = ppid
	}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		rec.CommandLine = cmdline
	}
	if memInfo, err := p.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		rec.MemoryBytes = memInfo.RSS
		rec.VirtualMemoryBytes = memInfo.VMS
	}
	if statuses, err := p.StatusWithContext(ctx); err == nil {
		rec.Status = normalizeStatus(statuses)
	}
	if nice, err := p.NiceWithContext(ctx); err == nil {
		rec.Priority = normalizePriority(nice)
	}

	var cpuSeconds float64
	if times, err := p.TimesWithContext(ctx); err == nil && times != nil {
		cpuSeconds = times.User + times.System
	}

	var readBytes, writeBytes uint64
	if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
		readBytes = io.ReadBytes
		writeBytes = io.WriteBytes
	}

	if prev, ok := c.baselines[key]; ok && elapsed > 0 {
		rec.CPUPercent = cpuPercent(prev.cpuSeconds, cpuSeconds, elapsed)
		rec.DiskReadDelta = deltaBytes(prev.readBytes, readBytes)
		rec.DiskWriteDelta = deltaBytes(prev.writeBytes, writeBytes)
	}
	// First observation keeps zero deltas: there is no baseline to rate against.

	c.baselines[key] = procBaseline{
		cpuSeconds: cpuSeconds,
		readBytes:  readBytes,
		writeBytes: writeBytes,
	}

	return rec, key, true
}

// collectNet folds all interfaces into one rx/tx delta. A failed read degrades
// to zero deltas rather than failing the poll.
func (c *Collector) collectNet(ctx context.Context, snap *Snapshot) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		log.Debug("network counters unavailable", "error", err)
		return
	}
	recv, sent := counters[0].BytesRecv, counters[0].BytesSent
	if c.netSeen {
		snap.NetRecvDelta = deltaBytes(c.lastNet[0], recv)
		snap.NetSentDelta = deltaBytes(c.lastNet[1], sent)
	}
	c.lastNet = [2]uint64{recv, sent}
	c.netSeen = true
}

// collectDisk folds all block devices into one read/write delta.
func (c *Collector) collectDisk(ctx context.Context, snap *Snapshot) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil || len(counters) == 0 {
		log.Debug("disk counters unavailable", "error", err)
		return
	}
	var read, write uint64
	for _, stat := range counters {
		read += stat.ReadBytes
		write += stat.WriteBytes
	}
	if c.diskSeen {
		snap.DiskReadDelta = deltaBytes(c.lastDisk[0], read)
		snap.DiskWriteDelta = deltaBytes(c.lastDisk[1], write)
	}
	c.lastDisk = [2]uint64{read, write}
	c.diskSeen = true
}

// deltaBytes guards against counter resets: a shrinking counter reports zero,
// never an underflowed delta.
func deltaBytes(prev, now uint64) uint64 {
	if now < prev {
		return 0
	}
	return now - prev
}

// cpuPercent converts a CPU-time delta to utilization where one logical core
// fully busy is 100%.
func cpuPercent(prevSeconds, nowSeconds float64, elapsed time.Duration) float64 {
	if nowSeconds < prevSeconds || elapsed <= 0 {
		return 0
	}
	return (nowSeconds - prevSeconds) / elapsed.Seconds() * 100
}

// normalizeStatus maps gopsutil status reports into the shared vocabulary.
func normalizeStatus(statuses []string) Status {
	if len(statuses) == 0 {
		return StatusUnknown
	}
	switch statuses[0] {
	case process.Running:
		return StatusRunning
	case process.Sleep, process.Idle, process.Wait, process.Blocked, process.Lock:
		return StatusSleeping
	case process.Stop:
		return StatusSuspended
	case process.Zombie:
		return StatusZombie
	default:
		return StatusUnknown
	}
}

// normalizePriority buckets the platform-native priority value gopsutil
// reports (niceness on unix, priority class on Windows).
func normalizePriority(nice int32) control.PriorityLevel {
	if runtime.GOOS == "windows" {
		return control.LevelFromPriorityClass(uint32(nice))
	}
	return control.LevelFromNiceness(int(nice))
}
