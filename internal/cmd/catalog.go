package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/collector"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/compliance"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/eventlog"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/config"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// measureWindow is the delta window of rate probes (CPU %, MB/s, Mbps).
const measureWindow = 500 * time.Millisecond

// probeSources are the optional external data sources; nil means not configured.
type probeSources struct {
	compliance port.ComplianceAPI
	events     port.EventLogSource
}

// newProbeSources creates the clients of enabled sources. No connection is made here.
func newProbeSources(cfg *config.Config, cache port.Cache, log *logger.Logger) (probeSources, error) {
	var sources probeSources
	if cfg.Compliance.Enabled {
		client, err := compliance.NewClient(compliance.Config{
			BaseURL:  cfg.Compliance.BaseURL,
			Token:    cfg.Compliance.Token,
			Timeout:  cfg.Compliance.Timeout,
			CacheTTL: cfg.Compliance.CacheTTL,
			PageSize: cfg.Compliance.AuditPageSize,
		}, cache, log)
		if err != nil {
			return sources, fmt.Errorf("compliance client: %w", err)
		}
		sources.compliance = client
	}
	if cfg.EventLog.Enabled {
		sources.events = eventlog.NewWevtutilSource()
	}
	return sources, nil
}

// buildCatalog registers every configured check with its probe and the mode table.
// Checks whose source is not configured stay listed but carry MissingParams.
// The whole threshold table is validated before anything is registered.
func buildCatalog(cfg *config.Config, sources probeSources) (*usecase.CheckCatalog, error) {
	catalog := usecase.NewCheckCatalog()
	finder := collector.NewAgentProcessFinder(cfg.Agent.ProcessNames)
	defs := make([]usecase.CheckDefinition, 0, len(cfg.Checks))
	bindings := make([]service.ThresholdBinding, 0, len(cfg.Checks))

	for _, s := range cfg.Checks {
		threshold, err := s.BuildThreshold()
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", s.Check, err)
		}
		statistic, err := valueobject.ParseStatistic(s.Statistic)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", s.Check, err)
		}
		dimension := valueobject.Dimension(s.Dimension)
		if err := dimension.Validate(); err != nil {
			return nil, fmt.Errorf("check %s: %w %q", s.Check, err, s.Dimension)
		}

		probe, missing, err := probeFor(cfg, s.Check, finder, sources)
		if err != nil {
			return nil, err
		}

		defs = append(defs, usecase.CheckDefinition{
			Name:          s.Check,
			Dimension:     dimension,
			Threshold:     threshold,
			Statistic:     statistic,
			Ticks:         s.Ticks,
			Interval:      s.Interval,
			Probe:         probe,
			MissingParams: missing,
		})
		bindings = append(bindings, service.ThresholdBinding{Dimension: dimension, Threshold: threshold})
	}

	if errs := service.NewThresholdValidator().ValidateBatch(bindings); len(errs) > 0 {
		return nil, fmt.Errorf("invalid threshold table: %w", errors.Join(errs...))
	}
	for _, def := range defs {
		if err := catalog.Register(def); err != nil {
			return nil, err
		}
	}

	modes := make([]string, 0, len(cfg.Modes))
	for mode := range cfg.Modes {
		modes = append(modes, mode)
	}
	sort.Strings(modes)

	for _, raw := range modes {
		mode, err := valueobject.ParseMonitoringMode(raw)
		if err != nil {
			return nil, err
		}
		if err := catalog.SetMode(mode, cfg.Modes[raw]); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

func probeFor(cfg *config.Config, check string, finder *collector.AgentProcessFinder, sources probeSources) (port.Probe, []string, error) {
	switch check {
	case "file-open-latency":
		return collector.NewFileLatencyProbe(collector.FileOpen, cfg.Probes.FileDir, cfg.Probes.FileSizeKB), nil, nil
	case "file-save-latency":
		return collector.NewFileLatencyProbe(collector.FileSave, cfg.Probes.FileDir, cfg.Probes.FileSizeKB), nil, nil
	case "file-copy-latency":
		return collector.NewFileLatencyProbe(collector.FileCopy, cfg.Probes.FileDir, cfg.Probes.FileSizeKB), nil, nil
	case "agent-cpu":
		return collector.NewAgentCPUProbe(finder, measureWindow), nil, nil
	case "agent-memory":
		return collector.NewAgentMemoryProbe(finder), nil, nil
	case "agent-disk-io":
		return collector.NewAgentDiskIOProbe(finder, measureWindow), nil, nil
	case "system-cpu":
		return collector.NewSystemCPUProbe(measureWindow), nil, nil
	case "system-memory":
		return collector.NewSystemMemoryProbe(), nil, nil
	case "network-latency":
		if cfg.Probes.NetworkTarget == "" {
			return nil, []string{"PROBE_NETWORK_TARGET"}, nil
		}
		return collector.NewNetworkLatencyProbe(cfg.Probes.NetworkTarget, cfg.Sampling.ProbeTimeout), nil, nil
	case "network-throughput":
		return collector.NewNetworkThroughputProbe(cfg.Probes.NetworkInterface, measureWindow), nil, nil
	case "policy-coverage":
		if sources.compliance == nil {
			return nil, []string{"COMPLIANCE_BASE_URL", "COMPLIANCE_TOKEN"}, nil
		}
		return compliance.NewPolicyCoverageProbe(sources.compliance), nil, nil
	case "policy-match-rate":
		if sources.compliance == nil {
			return nil, []string{"COMPLIANCE_BASE_URL", "COMPLIANCE_TOKEN"}, nil
		}
		return compliance.NewPolicyMatchRateProbe(
			sources.compliance,
			cfg.Compliance.AuditWindow,
			cfg.Compliance.MatchOperation,
			cfg.Compliance.AuditResultCap,
		), nil, nil
	case "event-error-rate":
		if sources.events == nil {
			return nil, []string{"EVENTLOG_ENABLED"}, nil
		}
		return eventlog.NewErrorRateProbe(
			sources.events,
			cfg.EventLog.LogName,
			cfg.EventLog.Providers,
			cfg.EventLog.Window,
			cfg.EventLog.MaxEvents,
		), nil, nil
	default:
		return nil, nil, fmt.Errorf("check %s has no probe implementation", check)
	}
}
