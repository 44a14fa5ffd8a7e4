package advisor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is a user-defined threshold rule loaded from the rules file. Custom
// rules share the hysteresis machinery with the built-ins.
type Rule struct {
	Name      string   `yaml:"name"`
	Metric    string   `yaml:"metric"` // "cpu" or "memory"
	Scope     Scope    `yaml:"scope"`  // "system" or "process"
	Threshold float64  `yaml:"threshold"`
	Sustain   int      `yaml:"sustain,omitempty"`
	Severity  Severity `yaml:"severity,omitempty"`
}

// LoadRules reads and validates custom rules from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	seen := make(map[string]bool, len(doc.Rules))
	for i := range doc.Rules {
		rule := &doc.Rules[i]
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i+1, rule.Name, err)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		seen[rule.Name] = true
	}
	return doc.Rules, nil
}

func (r *Rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Metric != "cpu" && r.Metric != "memory" {
		return fmt.Errorf("metric must be cpu or memory, got %q", r.Metric)
	}
	if r.Scope != ScopeSystem && r.Scope != ScopeProcess {
		return fmt.Errorf("scope must be system or process, got %q", r.Scope)
	}
	if r.Threshold <= 0 || r.Threshold > 100 {
		return fmt.Errorf("threshold %.1f out of range (0, 100]", r.Threshold)
	}
	if r.Sustain < 0 {
		return fmt.Errorf("sustain must not be negative")
	}
	switch r.Severity {
	case "", SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	return nil
}

func (r *Rule) sustainOrDefault(fallback int) int {
	if r.Sustain > 0 {
		return r.Sustain
	}
	return fallback
}

func (r *Rule) severityOrDefault() Severity {
	if r.Severity != "" {
		return r.Severity
	}
	return SeverityWarning
}

// appendConditions adds this rule's breaches for the tick into conditions.
func (r *Rule) appendConditions(in Input, defaultSustain int, conditions map[alertKey]condition) {
	sustain := r.sustainOrDefault(defaultSustain)
	severity := r.severityOrDefault()

	if r.Scope == ScopeSystem {
		value := in.SystemCPU
		if r.Metric == "memory" {
			value = in.MemoryPercent
		}
		if value > r.Threshold {
			conditions[alertKey{kind: KindCustom, rule: r.Name}] = condition{
				scope:    ScopeSystem,
				sustain:  sustain,
				severity: severity,
				message:  fmt.Sprintf("%s: system %s at %.1f%% (threshold %.0f%%)", r.Name, r.Metric, value, r.Threshold),
			}
		}
		return
	}

	for _, rec := range in.Processes {
		value := rec.CPUPercent
		if r.Metric == "memory" {
			value = memPercent(rec.MemoryBytes, in.MemoryTotal)
		}
		if value > r.Threshold {
			conditions[alertKey{kind: KindCustom, rule: r.Name, pid: rec.PID}] = condition{
				scope:    ScopeProcess,
				sustain:  sustain,
				severity: severity,
				message:  fmt.Sprintf("%s: %s (pid %d) %s at %.1f%% (threshold %.0f%%)", r.Name, rec.Name, rec.PID, r.Metric, value, r.Threshold),
			}
		}
	}
}
