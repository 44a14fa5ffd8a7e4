package advisor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vigil-mon/agent/internal/collector"
	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("advisor")

// Kind identifies the class of condition behind an alert.
type Kind string

const (
	KindHighCPU    Kind = "high_cpu"
	KindHighMemory Kind = "high_memory"
	KindCustom     Kind = "custom"
)

// Scope says what an alert is about.
type Scope string

const (
	ScopeSystem  Scope = "system"
	ScopeProcess Scope = "process"
)

// Severity grades an alert for display.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one active advisory. Alerts are deduplicated by (kind, rule, pid):
// re-triggering an active alert moves LastSeen, never creates a duplicate.
type Alert struct {
	Kind         Kind      `json:"kind"`
	Rule         string    `json:"rule,omitempty"` // set for custom kinds
	Scope        Scope     `json:"scope"`
	PID          int32     `json:"pid,omitempty"` // zero for system scope
	Message      string    `json:"message"`
	Severity     Severity  `json:"severity"`
	RaisedAt     time.Time `json:"raisedAt"`
	LastSeen     time.Time `json:"lastSeen"`
	Acknowledged bool      `json:"acknowledged"`
}

// Input is the read-only view of one tick the advisor evaluates.
type Input struct {
	At            time.Time
	SystemCPU     float64
	MemoryPercent float64
	MemoryTotal   uint64
	Processes     []collector.ProcessRecord
}

// Config carries the built-in thresholds plus any custom rules.
type Config struct {
	CPUThreshold float64
	MemThreshold float64
	Sustain      int
	CPUEnabled   bool
	MemEnabled   bool
	Rules        []Rule
}

type alertKey struct {
	kind Kind
	rule string
	pid  int32
}

// streak counts consecutive ticks a condition held or not, implementing the
// hysteresis window on both edges.
type streak struct {
	above int
	below int
}

// condition is one threshold breach observed in the current tick.
type condition struct {
	scope    Scope
	sustain  int
	severity Severity
	message  string
}

// Advisor evaluates snapshots against thresholds and maintains the alert list.
// Evaluate is called only from the engine tick; Acknowledge may be called from
// any goroutine.
type Advisor struct {
	mu      sync.Mutex
	cfg     Config
	streaks map[alertKey]*streak
	active  map[alertKey]*Alert
}

func New(cfg Config) *Advisor {
	if cfg.Sustain < 1 {
		cfg.Sustain = 1
	}
	return &Advisor{
		cfg:     cfg,
		streaks: make(map[alertKey]*streak),
		active:  make(map[alertKey]*Alert),
	}
}

// Evaluate updates sustain counters from the tick's view and returns the new
// alert list. A condition must hold for the sustain window before an alert is
// raised, and stay clear for the same window before it is retired.
func (a *Advisor) Evaluate(in Input) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Acknowledged alerts retire now, counters included, so a still-hot
	// condition has to re-earn its alert through a full sustain window.
	for key, alert := range a.active {
		if alert.Acknowledged {
			delete(a.active, key)
			delete(a.streaks, key)
		}
	}

	conditions := a.gatherConditions(in)

	for key, cond := range conditions {
		st, ok := a.streaks[key]
		if !ok {
			st = &streak{}
			a.streaks[key] = st
		}
		st.above++
		st.below = 0

		if alert, active := a.active[key]; active {
			alert.LastSeen = in.At
			alert.Message = cond.message
			continue
		}
		if st.above >= cond.sustain {
			a.active[key] = &Alert{
				Kind:     key.kind,
				Rule:     key.rule,
				Scope:    cond.scope,
				PID:      key.pid,
				Message:  cond.message,
				Severity: cond.severity,
				RaisedAt: in.At,
				LastSeen: in.At,
			}
			log.Info("alert raised", "kind", string(key.kind), "pid", key.pid, "message", cond.message)
		}
	}

	// Everything tracked but not breaching this tick is cooling down.
	for key, st := range a.streaks {
		if _, breaching := conditions[key]; breaching {
			continue
		}
		st.above = 0
		st.below++

		alert, active := a.active[key]
		if !active {
			delete(a.streaks, key)
			continue
		}
		if st.below >= a.sustainFor(key) {
			delete(a.active, key)
			delete(a.streaks, key)
			log.Info("alert retired", "kind", string(key.kind), "pid", key.pid, "message", alert.Message)
		}
	}

	return a.alertList()
}

// Acknowledge marks a matching active alert; it is retired on the next
// evaluation. Returns false when no such alert is active.
func (a *Advisor) Acknowledge(kind Kind, rule string, pid int32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	alert, ok := a.active[alertKey{kind: kind, rule: rule, pid: pid}]
	if !ok {
		return false
	}
	alert.Acknowledged = true
	return true
}

// Alerts returns a copy of the current alert list without evaluating.
func (a *Advisor) Alerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alertList()
}

func (a *Advisor) alertList() []Alert {
	out := make([]Alert, 0, len(a.active))
	for _, alert := range a.active {
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].PID < out[j].PID
	})
	return out
}

func (a *Advisor) sustainFor(key alertKey) int {
	if key.kind == KindCustom {
		for _, rule := range a.cfg.Rules {
			if rule.Name == key.rule {
				return rule.sustainOrDefault(a.cfg.Sustain)
			}
		}
	}
	return a.cfg.Sustain
}

func (a *Advisor) gatherConditions(in Input) map[alertKey]condition {
	conditions := make(map[alertKey]condition)

	if a.cfg.CPUEnabled {
		if in.SystemCPU > a.cfg.CPUThreshold {
			conditions[alertKey{kind: KindHighCPU}] = condition{
				scope:    ScopeSystem,
				sustain:  a.cfg.Sustain,
				severity: SeverityWarning,
				message:  fmt.Sprintf("system CPU at %.1f%% (threshold %.0f%%)", in.SystemCPU, a.cfg.CPUThreshold),
			}
		}
		for _, rec := range in.Processes {
			if rec.CPUPercent > a.cfg.CPUThreshold {
				conditions[alertKey{kind: KindHighCPU, pid: rec.PID}] = condition{
					scope:    ScopeProcess,
					sustain:  a.cfg.Sustain,
					severity: SeverityWarning,
					message:  fmt.Sprintf("%s (pid %d) CPU at %.1f%% (threshold %.0f%%)", rec.Name, rec.PID, rec.CPUPercent, a.cfg.CPUThreshold),
				}
			}
		}
	}

	if a.cfg.MemEnabled {
		if in.MemoryPercent > a.cfg.MemThreshold {
			conditions[alertKey{kind: KindHighMemory}] = condition{
				scope:    ScopeSystem,
				sustain:  a.cfg.Sustain,
				severity: SeverityWarning,
				message:  fmt.Sprintf("system memory at %.1f%% (threshold %.0f%%)", in.MemoryPercent, a.cfg.MemThreshold),
			}
		}
		for _, rec := range in.Processes {
			pct := memPercent(rec.MemoryBytes, in.MemoryTotal)
			if pct > a.cfg.MemThreshold {
				conditions[alertKey{kind: KindHighMemory, pid: rec.PID}] = condition{
					scope:    ScopeProcess,
					sustain:  a.cfg.Sustain,
					severity: SeverityWarning,
					message:  fmt.Sprintf("%s (pid %d) using %.1f%% of memory (threshold %.0f%%)", rec.Name, rec.PID, pct, a.cfg.MemThreshold),
				}
			}
		}
	}

	for _, rule := range a.cfg.Rules {
		rule.appendConditions(in, a.cfg.Sustain, conditions)
	}

	return conditions
}

func memPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}
