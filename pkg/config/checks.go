package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"gopkg.in/yaml.v3"
)

// CheckSettings threshold and sampling parameters of one named check.
type CheckSettings struct {
	Check             string        `yaml:"check"`
	Threshold         string        `yaml:"name"`
	Dimension         string        `yaml:"dimension"`
	Limit             float64       `yaml:"limit"`
	Direction         string        `yaml:"direction"`
	WarningMultiplier float64       `yaml:"warning_multiplier"`
	Unit              string        `yaml:"unit"`
	Statistic         string        `yaml:"statistic"`
	Ticks             int           `yaml:"ticks"`
	Interval          time.Duration `yaml:"interval"`
}

type thresholdsFile struct {
	Thresholds []CheckSettings      `yaml:"thresholds"`
	Modes      map[string][]string `yaml:"modes"`
}

// DefaultChecks is the built-in threshold table.
func DefaultChecks() []CheckSettings {
	return []CheckSettings{
		{Check: "file-open-latency", Threshold: "FileOpenDelay", Dimension: "file_latency", Limit: 500, Direction: "lt", Unit: "ms", Ticks: 15, Interval: time.Second},
		{Check: "file-save-latency", Threshold: "FileSaveDelay", Dimension: "file_latency", Limit: 1000, Direction: "lt", Unit: "ms", Ticks: 10, Interval: time.Second},
		{Check: "file-copy-latency", Threshold: "FileCopyDelay", Dimension: "file_latency", Limit: 1500, Direction: "lt", Unit: "ms", Ticks: 10, Interval: time.Second},
		{Check: "agent-cpu", Threshold: "AgentCPU", Dimension: "cpu", Limit: 5, Direction: "lt", Unit: "%", Ticks: 10, Interval: 2 * time.Second},
		{Check: "agent-memory", Threshold: "AgentMemory", Dimension: "memory", Limit: 300, Direction: "lt", Unit: "MB", Ticks: 5, Interval: 2 * time.Second},
		{Check: "agent-disk-io", Threshold: "AgentDiskIO", Dimension: "disk", Limit: 10, Direction: "lt", Unit: "MB/s", Ticks: 10, Interval: 2 * time.Second},
		{Check: "system-cpu", Threshold: "SystemCPU", Dimension: "cpu", Limit: 75, Direction: "lt", Unit: "%", Ticks: 10, Interval: 2 * time.Second},
		{Check: "system-memory", Threshold: "SystemMemory", Dimension: "memory", Limit: 80, Direction: "lt", Unit: "%", Ticks: 5, Interval: 2 * time.Second},
		{Check: "network-latency", Threshold: "NetworkLatency", Dimension: "network", Limit: 100, Direction: "lt", Unit: "ms", Ticks: 10, Interval: time.Second},
		{Check: "network-throughput", Threshold: "NetworkOverhead", Dimension: "network", Limit: 10, Direction: "lt", Unit: "Mbps", Ticks: 10, Interval: 2 * time.Second},
		{Check: "policy-match-rate", Threshold: "PolicyMatchRate", Dimension: "policy", Limit: 5, Direction: "lt", Unit: "%", Ticks: 1, Interval: time.Second},
		{Check: "policy-coverage", Threshold: "PolicyCoverage", Dimension: "policy", Limit: 80, Direction: "gt", Unit: "%", Ticks: 1, Interval: time.Second},
		{Check: "event-error-rate", Threshold: "EventErrorRate", Dimension: "event_log", Limit: 5, Direction: "lt", Unit: "%", Ticks: 1, Interval: time.Second},
	}
}

// DefaultModes maps predefined monitoring modes to ordered check lists.
// "full" is resolved to every registered check.
func DefaultModes() map[string][]string {
	return map[string][]string{
		"quick":       {"agent-cpu", "agent-memory", "file-open-latency"},
		"performance": {"agent-cpu", "agent-memory", "agent-disk-io", "system-cpu", "system-memory", "file-open-latency", "file-save-latency", "file-copy-latency"},
		"network":     {"network-latency", "network-throughput"},
		"compliance":  {"policy-coverage", "policy-match-rate", "event-error-rate"},
	}
}

// BuildThreshold builds the immutable threshold value.
func (s CheckSettings) BuildThreshold() (valueobject.Threshold, error) {
	dir, err := valueobject.ParseDirection(s.Direction)
	if err != nil {
		return valueobject.Threshold{}, err
	}
	unit, err := valueobject.ParseUnit(s.Unit)
	if err != nil {
		return valueobject.Threshold{}, err
	}
	return valueobject.NewThreshold(s.Threshold, s.Limit, dir, s.WarningMultiplier, unit)
}

// CheckByName returns the settings of a named check.
func (c *Config) CheckByName(name string) (CheckSettings, bool) {
	for _, s := range c.Checks {
		if s.Check == name {
			return s, true
		}
	}
	return CheckSettings{}, false
}

func (c *Config) applyThresholdsFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read thresholds file: %w", err)
	}

	var file thresholdsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse thresholds file %s: %w", path, err)
	}

	for _, override := range file.Thresholds {
		idx := -1
		for i, s := range c.Checks {
			if s.Check == override.Check {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("thresholds file %s: unknown check %q", path, override.Check)
		}
		c.Checks[idx] = mergeCheck(c.Checks[idx], override)
	}

	for mode, checks := range file.Modes {
		if c.Modes == nil {
			c.Modes = make(map[string][]string)
		}
		c.Modes[mode] = checks
	}

	return nil
}

func mergeCheck(base, o CheckSettings) CheckSettings {
	if o.Threshold != "" {
		base.Threshold = o.Threshold
	}
	if o.Limit != 0 {
		base.Limit = o.Limit
	}
	if o.Direction != "" {
		base.Direction = o.Direction
	}
	if o.WarningMultiplier != 0 {
		base.WarningMultiplier = o.WarningMultiplier
	}
	if o.Unit != "" {
		base.Unit = o.Unit
	}
	if o.Statistic != "" {
		base.Statistic = o.Statistic
	}
	if o.Ticks != 0 {
		base.Ticks = o.Ticks
	}
	if o.Interval != 0 {
		base.Interval = o.Interval
	}
	return base
}

func (c *Config) validateChecks() error {
	for _, s := range c.Checks {
		if _, err := s.BuildThreshold(); err != nil {
			return fmt.Errorf("check %s: %w", s.Check, err)
		}
		if _, err := valueobject.ParseStatistic(s.Statistic); err != nil {
			return fmt.Errorf("check %s: %w", s.Check, err)
		}
		if s.Ticks < 1 || s.Ticks > c.Sampling.MaxTicks {
			return fmt.Errorf("check %s: ticks must be between 1 and %d", s.Check, c.Sampling.MaxTicks)
		}
		if s.Interval <= 0 {
			return fmt.Errorf("check %s: interval must be positive", s.Check)
		}
	}

	for mode, checks := range c.Modes {
		m, err := valueobject.ParseMonitoringMode(mode)
		if err != nil {
			return err
		}
		if m == valueobject.ModeCustom || m == valueobject.ModeFull {
			return fmt.Errorf("mode %q is reserved", mode)
		}
		for _, name := range checks {
			if _, ok := c.CheckByName(name); !ok {
				return fmt.Errorf("mode %s references unknown check %q", mode, name)
			}
		}
	}
	if _, err := valueobject.ParseMonitoringMode(c.Sampling.DefaultMode); err != nil {
		return fmt.Errorf("KPIMON_DEFAULT_MODE: %w", err)
	}

	return nil
}
