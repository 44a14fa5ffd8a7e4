package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-mon/agent/internal/advisor"
	"github.com/vigil-mon/agent/internal/collector"
	"github.com/vigil-mon/agent/internal/config"
	"github.com/vigil-mon/agent/internal/control"
	"github.com/vigil-mon/agent/internal/dispatch"
	"github.com/vigil-mon/agent/internal/history"
	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("engine")

const (
	inboxSize        = 256
	recentEventLimit = 64
	dispatchWorkers  = 4
)

// Pollster produces one system snapshot per call. *collector.Collector is the
// production implementation; tests inject fakes.
type Pollster interface {
	Poll(ctx context.Context) (*collector.Snapshot, error)
}

// State is the immutable per-tick publication consumed by the presentation
// layer. Everything in it is a copy; readers can hold it indefinitely.
type State struct {
	Tick          uint64                              `json:"tick"`
	At            time.Time                           `json:"at"`
	CPUPercent    float64                             `json:"cpuPercent"`
	MemoryPercent float64                             `json:"memoryPercent"`
	MemoryUsed    uint64                              `json:"memoryUsed"`
	MemoryTotal   uint64                              `json:"memoryTotal"`
	Load1         float64                             `json:"load1,omitempty"`
	Uptime        uint64                              `json:"uptime,omitempty"`
	Processes     []collector.ProcessRecord           `json:"processes"`
	History       map[history.Metric][]history.Sample `json:"history"`
	Alerts        []advisor.Alert                     `json:"alerts"`
	Suggestions   []advisor.Suggestion                `json:"suggestions"`
	Events        []Event                             `json:"events,omitempty"`
}

// Engine owns the process table and drives the tick loop. Only Tick mutates
// the table; every other method is safe to call from any goroutine.
type Engine struct {
	cfg      *config.Config
	pollster Pollster
	ctrl     control.Controller
	pool     *dispatch.Pool
	hist     *history.Store
	adv      *advisor.Advisor

	table map[int32]*collector.ProcessRecord
	tick  uint64

	mu      sync.Mutex // guards pending, recentEvents, subscribers
	pending []Command
	inbox   chan Event

	recentEvents []Event
	subscribers  map[chan *State]struct{}

	published atomic.Pointer[State]
}

// New wires an engine from its collaborators. rules may be nil.
func New(cfg *config.Config, pollster Pollster, ctrl control.Controller, rules []advisor.Rule) *Engine {
	e := &Engine{
		cfg:      cfg,
		pollster: pollster,
		ctrl:     ctrl,
		pool:     dispatch.NewPool(dispatchWorkers, inboxSize),
		hist:     history.NewStore(cfg.HistoryCapacity),
		adv: advisor.New(advisor.Config{
			CPUThreshold: cfg.CPUAlertPercent,
			MemThreshold: cfg.MemAlertPercent,
			Sustain:      cfg.AlertSustainTicks,
			CPUEnabled:   cfg.CPUAlertsEnabled,
			MemEnabled:   cfg.MemAlertsEnabled,
			Rules:        rules,
		}),
		table:       make(map[int32]*collector.ProcessRecord),
		inbox:       make(chan Event, inboxSize),
		subscribers: make(map[chan *State]struct{}),
	}
	e.published.Store(&State{History: map[history.Metric][]history.Sample{}})
	return e
}

// Run drives Tick on the configured cadence until ctx is cancelled, then
// drains in-flight control operations.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.TickIntervalMS) * time.Millisecond
	log.Info("engine started", "interval", interval, "historyCapacity", e.cfg.HistoryCapacity)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			e.Tick(ctx)
		case <-ctx.Done():
			e.shutdown()
			return
		}
	}
}

func (e *Engine) shutdown() {
	e.pool.StopAccepting()
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.pool.Drain(drainCtx)
	log.Info("engine stopped", "ticks", e.tick)
}

// Tick performs one full engine cycle: poll, reconcile, record history,
// evaluate alerts, process commands, publish. It is synchronous and must only
// run from a single goroutine. A failed poll never terminates the loop: the
// tick is skipped and the previous publication stands.
func (e *Engine) Tick(ctx context.Context) {
	started := time.Now()

	snap, err := e.pollster.Poll(ctx)
	if err != nil {
		var partial *collector.PartialError
		switch {
		case errors.As(err, &partial):
			// Best-effort snapshot: absorbed, the grace period covers
			// whatever was missed.
			log.Debug("partial poll", "failedReads", partial.Failed)
		case errors.Is(err, collector.ErrUnavailable):
			log.Warn("poll unavailable, skipping tick", "error", err)
			return
		default:
			log.Warn("poll failed, skipping tick", "error", err)
			return
		}
	}

	e.tick++
	e.reconcile(snap)
	e.recordHistory(snap)

	input := advisor.Input{
		At:            snap.Timestamp,
		SystemCPU:     snap.CPUPercent,
		MemoryPercent: snap.MemoryPercent(),
		MemoryTotal:   snap.MemoryTotal,
		Processes:     e.tableView(),
	}
	alerts := e.adv.Evaluate(input)
	suggestions := advisor.Suggest(input)

	events := e.processCommands(snap.Timestamp)

	e.publish(snap, alerts, suggestions, events)

	log.Debug("tick complete",
		logging.KeyTick, e.tick,
		"processes", len(e.table),
		"alerts", len(alerts),
		logging.KeyDurationMs, time.Since(started).Milliseconds())
}

// reconcile merges the snapshot into the table. Identity is (pid, start
// time): a recycled pid replaces the dead record outright. Records missing
// from the snapshot survive for GraceTicks consecutive polls before removal,
// so one failed or slow read does not flicker the table.
func (e *Engine) reconcile(snap *collector.Snapshot) {
	seen := make(map[int32]struct{}, len(snap.Processes))

	for i := range snap.Processes {
		rec := snap.Processes[i]
		seen[rec.PID] = struct{}{}

		existing, ok := e.table[rec.PID]
		if ok && existing.SameIdentity(&rec) {
			rec.MissingTicks = 0
			*existing = rec
			continue
		}
		fresh := rec
		e.table[rec.PID] = &fresh
	}

	for pid, rec := range e.table {
		if _, ok := seen[pid]; ok {
			continue
		}
		rec.MissingTicks++
		if rec.MissingTicks > e.cfg.GraceTicks {
			delete(e.table, pid)
		}
	}
}

func (e *Engine) recordHistory(snap *collector.Snapshot) {
	at := snap.Timestamp
	e.hist.Push(history.MetricCPU, snap.CPUPercent, at)
	e.hist.Push(history.MetricMemory, snap.MemoryPercent(), at)

	// Net and disk series hold bytes per second so the graph scale is
	// independent of the tick period.
	secs := snap.Elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	e.hist.Push(history.MetricNetRecv, float64(snap.NetRecvDelta)/secs, at)
	e.hist.Push(history.MetricNetSent, float64(snap.NetSentDelta)/secs, at)
	e.hist.Push(history.MetricDiskRead, float64(snap.DiskReadDelta)/secs, at)
	e.hist.Push(history.MetricDiskWrite, float64(snap.DiskWriteDelta)/secs, at)
}

// processCommands applies completions from earlier ticks, then dispatches
// commands queued since the last tick. Blocking OS work runs on the pool;
// completions funnel through the inbox so only the tick goroutine ever
// touches the table.
func (e *Engine) processCommands(at time.Time) []Event {
	var events []Event

	for {
		select {
		case ev := <-e.inbox:
			e.applyEvent(ev)
			events = append(events, ev)
			continue
		default:
		}
		break
	}

	e.mu.Lock()
	queued := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, cmd := range queued {
		if ev, done := e.validate(cmd, at); done {
			events = append(events, ev)
			continue
		}
		e.dispatch(cmd)
	}

	e.rememberEvents(events)
	return events
}

// validate short-circuits commands that cannot possibly succeed: a pid the
// table has never seen completes as NotFound without an OS call.
func (e *Engine) validate(cmd Command, at time.Time) (Event, bool) {
	if cmd.Verb == VerbLaunch {
		return Event{}, false
	}
	if _, ok := e.table[cmd.PID]; !ok {
		err := &control.Error{Op: string(cmd.Verb), PID: cmd.PID, Kind: control.KindNotFound}
		log.Info("command target unknown", logging.KeyCommandID, cmd.ID, logging.KeyPID, cmd.PID)
		return completionEvent(cmd, at, err), true
	}
	if cmd.Verb == VerbSetPriority && !cmd.Level.Valid() {
		err := &control.Error{Op: string(cmd.Verb), PID: cmd.PID, Kind: control.KindUnsupported}
		return completionEvent(cmd, at, err), true
	}
	return Event{}, false
}

func (e *Engine) dispatch(cmd Command) {
	accepted := e.pool.Submit(func() {
		var err error
		var launched int32

		switch cmd.Verb {
		case VerbTerminate:
			err = e.ctrl.Terminate(cmd.PID)
		case VerbSuspend:
			err = e.ctrl.Suspend(cmd.PID)
		case VerbResume:
			err = e.ctrl.Resume(cmd.PID)
		case VerbSetPriority:
			err = e.ctrl.SetPriority(cmd.PID, cmd.Level)
		case VerbLaunch:
			launched, err = e.ctrl.Launch(cmd.Command, cmd.Args)
		default:
			err = &control.Error{Op: string(cmd.Verb), PID: cmd.PID, Kind: control.KindUnsupported}
		}

		ev := completionEvent(cmd, time.Now(), err)
		ev.LaunchedPID = launched

		select {
		case e.inbox <- ev:
		default:
			// Inbox full: drop the event rather than block a worker. The
			// next poll still reflects the operation's effect.
			log.Warn("completion inbox full, event dropped", logging.KeyCommandID, cmd.ID)
		}
	})

	if !accepted {
		err := &control.Error{Op: string(cmd.Verb), PID: cmd.PID, Kind: control.KindFailed,
			Err: errors.New("dispatch queue full")}
		ev := completionEvent(cmd, time.Now(), err)
		select {
		case e.inbox <- ev:
		default:
		}
	}
}

// applyEvent merges a completed command's result into the table.
func (e *Engine) applyEvent(ev Event) {
	if !ev.OK() {
		log.Info("command failed", logging.KeyCommandID, ev.CommandID,
			"verb", string(ev.Verb), logging.KeyPID, ev.PID,
			"kind", string(ev.Kind), logging.KeyError, ev.Error)
		return
	}

	rec, ok := e.table[ev.PID]
	switch ev.Verb {
	case VerbSuspend:
		if ok {
			rec.Status = collector.StatusSuspended
		}
	case VerbResume:
		if ok {
			rec.Status = collector.StatusRunning
		}
	case VerbSetPriority:
		if ok {
			rec.Priority = ev.Level
		}
	case VerbLaunch:
		// The launched pid shows up in the table at the next poll.
		log.Info("launch complete", logging.KeyCommandID, ev.CommandID, "launchedPid", ev.LaunchedPID)
	}
}

func (e *Engine) tableView() []collector.ProcessRecord {
	out := make([]collector.ProcessRecord, 0, len(e.table))
	for _, rec := range e.table {
		out = append(out, *rec)
	}
	return out
}

func (e *Engine) publish(snap *collector.Snapshot, alerts []advisor.Alert, suggestions []advisor.Suggestion, events []Event) {
	state := &State{
		Tick:          e.tick,
		At:            snap.Timestamp,
		CPUPercent:    snap.CPUPercent,
		MemoryPercent: snap.MemoryPercent(),
		MemoryUsed:    snap.MemoryUsed,
		MemoryTotal:   snap.MemoryTotal,
		Load1:         snap.Load1,
		Uptime:        snap.Uptime,
		Processes:     e.tableView(),
		History:       e.hist.SnapshotAll(),
		Alerts:        alerts,
		Suggestions:   suggestions,
		Events:        events,
	}
	e.published.Store(state)

	e.mu.Lock()
	for ch := range e.subscribers {
		select {
		case ch <- state:
		default:
			// Slow subscriber: skip this tick for it rather than stall.
		}
	}
	e.mu.Unlock()
}

// State returns the most recently published snapshot.
func (e *Engine) State() *State {
	return e.published.Load()
}

// Submit queues a command for the next tick and returns its correlation id.
func (e *Engine) Submit(cmd Command) string {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	e.mu.Lock()
	e.pending = append(e.pending, cmd)
	e.mu.Unlock()
	log.Debug("command queued", logging.KeyCommandID, cmd.ID, "verb", string(cmd.Verb), logging.KeyPID, cmd.PID)
	return cmd.ID
}

// Acknowledge marks an active alert; the advisor retires it next tick.
func (e *Engine) Acknowledge(kind advisor.Kind, rule string, pid int32) bool {
	return e.adv.Acknowledge(kind, rule, pid)
}

// RecentEvents returns up to the last recentEventLimit completion events,
// newest last.
func (e *Engine) RecentEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.recentEvents))
	copy(out, e.recentEvents)
	return out
}

func (e *Engine) rememberEvents(events []Event) {
	if len(events) == 0 {
		return
	}
	e.mu.Lock()
	e.recentEvents = append(e.recentEvents, events...)
	if excess := len(e.recentEvents) - recentEventLimit; excess > 0 {
		e.recentEvents = e.recentEvents[excess:]
	}
	e.mu.Unlock()
}

// Subscribe registers a per-tick state channel for push consumers. Slow
// consumers miss ticks instead of blocking the engine.
func (e *Engine) Subscribe() chan *State {
	ch := make(chan *State, 1)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel registered with Subscribe.
func (e *Engine) Unsubscribe(ch chan *State) {
	e.mu.Lock()
	delete(e.subscribers, ch)
	e.mu.Unlock()
}
