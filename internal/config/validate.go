package config

import (
	"fmt"
	"log/slog"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would stall or break the tick loop are clamped to
// safe defaults; other problems are reported but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.TickIntervalMS < 100 {
		errs = append(errs, fmt.Errorf("tick_interval_ms %d below minimum, clamping to 100", c.TickIntervalMS))
		c.TickIntervalMS = 100
	}
	if c.TickIntervalMS > 60_000 {
		errs = append(errs, fmt.Errorf("tick_interval_ms %d above maximum, clamping to 60000", c.TickIntervalMS))
		c.TickIntervalMS = 60_000
	}

	if c.HistoryCapacity < 2 {
		errs = append(errs, fmt.Errorf("history_capacity %d too small, clamping to 2", c.HistoryCapacity))
		c.HistoryCapacity = 2
	}
	if c.HistoryCapacity > 100_000 {
		errs = append(errs, fmt.Errorf("history_capacity %d too large, clamping to 100000", c.HistoryCapacity))
		c.HistoryCapacity = 100_000
	}

	if c.GraceTicks < 0 {
		errs = append(errs, fmt.Errorf("grace_ticks %d negative, clamping to 0", c.GraceTicks))
		c.GraceTicks = 0
	}

	if c.AlertSustainTicks < 1 {
		errs = append(errs, fmt.Errorf("alert_sustain_ticks %d below minimum, clamping to 1", c.AlertSustainTicks))
		c.AlertSustainTicks = 1
	}

	if c.CPUAlertPercent <= 0 || c.CPUAlertPercent > 100 {
		errs = append(errs, fmt.Errorf("cpu_alert_percent %.1f out of range (0, 100], resetting to default", c.CPUAlertPercent))
		c.CPUAlertPercent = Default().CPUAlertPercent
	}
	if c.MemAlertPercent <= 0 || c.MemAlertPercent > 100 {
		errs = append(errs, fmt.Errorf("mem_alert_percent %.1f out of range (0, 100], resetting to default", c.MemAlertPercent))
		c.MemAlertPercent = Default().MemAlertPercent
	}

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (debug/info/warn/error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (text/json)", c.LogFormat))
	}

	return errs
}

// LogValidationErrors logs each validation error as a warning.
func LogValidationErrors(errs []error) {
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}
}
