package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vigil-mon/agent/internal/collector"
	"github.com/vigil-mon/agent/internal/config"
	"github.com/vigil-mon/agent/internal/control"
	"github.com/vigil-mon/agent/internal/history"
)

type fakePollster struct {
	mu    sync.Mutex
	snaps []*collector.Snapshot
	errs  []error
	calls int
}

func (f *fakePollster) Poll(ctx context.Context) (*collector.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.snaps[i], err
}

type call struct {
	op    string
	pid   int32
	level control.PriorityLevel
}

type fakeController struct {
	mu       sync.Mutex
	calls    []call
	fail     error
	launched int32
	done     chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{done: make(chan struct{}, 16), launched: 4242}
}

func (f *fakeController) record(c call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	err := f.fail
	f.mu.Unlock()
	f.done <- struct{}{}
	return err
}

func (f *fakeController) Terminate(pid int32) error { return f.record(call{op: "terminate", pid: pid}) }
func (f *fakeController) Suspend(pid int32) error   { return f.record(call{op: "suspend", pid: pid}) }
func (f *fakeController) Resume(pid int32) error    { return f.record(call{op: "resume", pid: pid}) }

func (f *fakeController) SetPriority(pid int32, level control.PriorityLevel) error {
	return f.record(call{op: "set_priority", pid: pid, level: level})
}

func (f *fakeController) Launch(command string, args []string) (int32, error) {
	err := f.record(call{op: "launch"})
	return f.launched, err
}

func (f *fakeController) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func snapWith(at time.Time, records ...collector.ProcessRecord) *collector.Snapshot {
	return &collector.Snapshot{
		Timestamp:   at,
		Elapsed:     700 * time.Millisecond,
		CPUPercent:  12.5,
		MemoryUsed:  4 << 30,
		MemoryTotal: 16 << 30,
		Processes:   records,
	}
}

func rec(pid int32, name string, start int64) collector.ProcessRecord {
	return collector.ProcessRecord{
		PID:       pid,
		Name:      name,
		Status:    collector.StatusRunning,
		StartTime: time.UnixMilli(start),
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.GraceTicks = 2
	return cfg
}

func newTestEngine(t *testing.T, pollster Pollster, ctrl control.Controller) *Engine {
	t.Helper()
	e := New(testConfig(), pollster, ctrl, nil)
	t.Cleanup(e.shutdown)
	return e
}

// waitEvent ticks until an event for id shows up or the deadline passes.
func waitEvent(t *testing.T, e *Engine, id string) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.Tick(context.Background())
		for _, ev := range e.RecentEvents() {
			if ev.CommandID == id {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no event for command %s", id)
	return Event{}
}

func TestReconcileSameIdentityUpdatesInPlace(t *testing.T) {
	at := time.Now()
	p := &fakePollster{snaps: []*collector.Snapshot{
		snapWith(at, rec(10, "worker", 1000)),
		snapWith(at.Add(time.Second), collector.ProcessRecord{
			PID: 10, Name: "worker", Status: collector.StatusRunning,
			StartTime: time.UnixMilli(1000), CPUPercent: 42,
		}),
	}}
	e := newTestEngine(t, p, newFakeController())

	e.Tick(context.Background())
	e.Tick(context.Background())

	state := e.State()
	if len(state.Processes) != 1 {
		t.Fatalf("processes = %d, want 1", len(state.Processes))
	}
	if got := state.Processes[0].CPUPercent; got != 42 {
		t.Errorf("CPUPercent = %v, want 42", got)
	}
}

func TestReconcileRecycledPIDReplacesRecord(t *testing.T) {
	at := time.Now()
	p := &fakePollster{snaps: []*collector.Snapshot{
		snapWith(at, rec(10, "old", 1000)),
		snapWith(at.Add(time.Second), rec(10, "new", 2000)),
	}}
	e := newTestEngine(t, p, newFakeController())

	e.Tick(context.Background())
	e.Tick(context.Background())

	state := e.State()
	if len(state.Processes) != 1 {
		t.Fatalf("processes = %d, want 1", len(state.Processes))
	}
	got := state.Processes[0]
	if got.Name != "new" || !got.StartTime.Equal(time.UnixMilli(2000)) {
		t.Errorf("record = %q/%v, want new/2000", got.Name, got.StartTime)
	}
	if got.MissingTicks != 0 {
		t.Errorf("MissingTicks = %d, want 0", got.MissingTicks)
	}
}

func TestReconcileRemovesAfterGracePeriod(t *testing.T) {
	at := time.Now()
	with := snapWith(at, rec(10, "worker", 1000))
	without := snapWith(at.Add(time.Second))
	p := &fakePollster{snaps: []*collector.Snapshot{with, without, without, without}}
	e := newTestEngine(t, p, newFakeController())

	e.Tick(context.Background())

	// GraceTicks is 2: the record survives two absent polls.
	for i := 0; i < 2; i++ {
		e.Tick(context.Background())
		if got := len(e.State().Processes); got != 1 {
			t.Fatalf("after %d absent polls: processes = %d, want 1", i+1, got)
		}
	}

	e.Tick(context.Background())
	if got := len(e.State().Processes); got != 0 {
		t.Errorf("after grace exceeded: processes = %d, want 0", got)
	}
}

func TestUnavailablePollKeepsPublishedState(t *testing.T) {
	at := time.Now()
	p := &fakePollster{
		snaps: []*collector.Snapshot{snapWith(at, rec(10, "worker", 1000)), nil},
		errs:  []error{nil, collector.ErrUnavailable},
	}
	e := newTestEngine(t, p, newFakeController())

	e.Tick(context.Background())
	before := e.State()

	e.Tick(context.Background())
	after := e.State()

	if before != after {
		t.Error("published state changed across an unavailable poll")
	}
	if after.Tick != 1 {
		t.Errorf("tick = %d, want 1", after.Tick)
	}
}

func TestTerminateUnknownPIDCompletesNotFound(t *testing.T) {
	at := time.Now()
	ctrl := newFakeController()
	p := &fakePollster{snaps: []*collector.Snapshot{snapWith(at, rec(10, "worker", 1000))}}
	e := newTestEngine(t, p, ctrl)

	e.Tick(context.Background())
	id := e.Submit(NewCommand(VerbTerminate, 999))
	e.Tick(context.Background())

	var found *Event
	for _, ev := range e.RecentEvents() {
		if ev.CommandID == id {
			found = &ev
			break
		}
	}
	if found == nil {
		t.Fatal("no completion event for unknown pid")
	}
	if found.Kind != control.KindNotFound {
		t.Errorf("kind = %q, want %q", found.Kind, control.KindNotFound)
	}
	if ctrl.callCount() != 0 {
		t.Errorf("controller called %d times for unknown pid, want 0", ctrl.callCount())
	}
	if got := len(e.State().Processes); got != 1 {
		t.Errorf("processes = %d, want 1", got)
	}
}

func TestSuspendKnownPIDMarksSuspended(t *testing.T) {
	at := time.Now()
	ctrl := newFakeController()
	p := &fakePollster{snaps: []*collector.Snapshot{snapWith(at, rec(10, "worker", 1000))}}
	e := newTestEngine(t, p, ctrl)

	e.Tick(context.Background())
	id := e.Submit(NewCommand(VerbSuspend, 10))

	ev := waitEvent(t, e, id)
	if !ev.OK() {
		t.Fatalf("suspend failed: %s", ev.Error)
	}
	if got := e.State().Processes[0].Status; got != collector.StatusSuspended {
		t.Errorf("status = %q, want %q", got, collector.StatusSuspended)
	}
}

func TestSetPriorityUpdatesRecord(t *testing.T) {
	at := time.Now()
	ctrl := newFakeController()
	p := &fakePollster{snaps: []*collector.Snapshot{snapWith(at, rec(10, "worker", 1000))}}
	e := newTestEngine(t, p, ctrl)

	e.Tick(context.Background())
	cmd := NewCommand(VerbSetPriority, 10)
	cmd.Level = control.PriorityHigh
	id := e.Submit(cmd)

	ev := waitEvent(t, e, id)
	if !ev.OK() {
		t.Fatalf("set_priority failed: %s", ev.Error)
	}
	if got := e.State().Processes[0].Priority; got != control.PriorityHigh {
		t.Errorf("priority = %v, want %v", got, control.PriorityHigh)
	}
}

func TestLaunchReportsNewPID(t *testing.T) {
	at := time.Now()
	ctrl := newFakeController()
	p := &fakePollster{snaps: []*collector.Snapshot{snapWith(at)}}
	e := newTestEngine(t, p, ctrl)

	e.Tick(context.Background())
	id := e.Submit(NewLaunchCommand("sleeper", []string{"60"}))

	ev := waitEvent(t, e, id)
	if !ev.OK() {
		t.Fatalf("launch failed: %s", ev.Error)
	}
	if ev.LaunchedPID != 4242 {
		t.Errorf("launchedPid = %d, want 4242", ev.LaunchedPID)
	}
}

func TestFailedCommandLeavesTableUntouched(t *testing.T) {
	at := time.Now()
	ctrl := newFakeController()
	ctrl.fail = &control.Error{Op: "suspend", PID: 10, Kind: control.KindPermissionDenied}
	p := &fakePollster{snaps: []*collector.Snapshot{snapWith(at, rec(10, "worker", 1000))}}
	e := newTestEngine(t, p, ctrl)

	e.Tick(context.Background())
	id := e.Submit(NewCommand(VerbSuspend, 10))

	ev := waitEvent(t, e, id)
	if ev.OK() {
		t.Fatal("expected failure event")
	}
	if ev.Kind != control.KindPermissionDenied {
		t.Errorf("kind = %q, want %q", ev.Kind, control.KindPermissionDenied)
	}
	if got := e.State().Processes[0].Status; got != collector.StatusRunning {
		t.Errorf("status = %q, want %q", got, collector.StatusRunning)
	}
}

func TestHistoryRecordedEachTick(t *testing.T) {
	at := time.Now()
	p := &fakePollster{snaps: []*collector.Snapshot{
		snapWith(at),
		snapWith(at.Add(time.Second)),
	}}
	e := newTestEngine(t, p, newFakeController())

	e.Tick(context.Background())
	e.Tick(context.Background())

	series := e.State().History[history.MetricCPU]
	if len(series) != 2 {
		t.Fatalf("cpu samples = %d, want 2", len(series))
	}
	if series[1].Value != 12.5 {
		t.Errorf("cpu sample = %v, want 12.5", series[1].Value)
	}
}

func TestSubscribeReceivesPublishedState(t *testing.T) {
	at := time.Now()
	p := &fakePollster{snaps: []*collector.Snapshot{snapWith(at, rec(10, "worker", 1000))}}
	e := newTestEngine(t, p, newFakeController())

	ch := e.Subscribe()
	defer e.Unsubscribe(ch)

	e.Tick(context.Background())

	select {
	case state := <-ch:
		if state.Tick != 1 {
			t.Errorf("tick = %d, want 1", state.Tick)
		}
	case <-time.After(time.Second):
		t.Fatal("no state delivered to subscriber")
	}
}

func TestRecentEventsBounded(t *testing.T) {
	e := newTestEngine(t, &fakePollster{snaps: []*collector.Snapshot{snapWith(time.Now())}}, newFakeController())

	events := make([]Event, recentEventLimit+10)
	for i := range events {
		events[i] = Event{CommandID: "x", At: time.Now()}
	}
	e.rememberEvents(events)

	if got := len(e.RecentEvents()); got != recentEventLimit {
		t.Errorf("recent events = %d, want %d", got, recentEventLimit)
	}
}
