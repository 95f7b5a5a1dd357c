package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/tui"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Host:     "endpoint-01",
		Sampling: config.SamplingConfig{DefaultMode: "quick", MaxTicks: 30, ProbeTimeout: time.Second},
		Agent:    config.AgentConfig{ProcessNames: []string{"mdatp"}},
		Probes: config.ProbesConfig{
			FileDir:       t.TempDir(),
			FileSizeKB:    4,
			NetworkTarget: "127.0.0.1:1",
		},
		Export: config.ExportConfig{Format: "table"},
		Checks: config.DefaultChecks(),
		Modes:  config.DefaultModes(),
	}
}

func setViper(t *testing.T, key string, value interface{}) {
	t.Helper()
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, nil) })
}

func TestBuildCatalogRegistersEveryCheck(t *testing.T) {
	cfg := testConfig(t)

	catalog, err := buildCatalog(cfg, probeSources{})
	require.NoError(t, err)

	assert.Len(t, catalog.Describe(), len(cfg.Checks))
	quick, ok := catalog.ModeChecks("quick")
	require.True(t, ok)
	assert.Equal(t, []string{"agent-cpu", "agent-memory", "file-open-latency"}, quick)

	_, defs, err := catalog.Resolve("quick", nil)
	require.NoError(t, err)
	assert.Len(t, defs, 3)
}

func TestBuildCatalogMarksUnconfiguredSources(t *testing.T) {
	catalog, err := buildCatalog(testConfig(t), probeSources{})
	require.NoError(t, err)

	_, _, err = catalog.Resolve("compliance", nil)
	require.Error(t, err)
	assert.True(t, service.IsOrchestrationFailure(err))
	assert.True(t, errors.Is(err, service.ErrMissingParameter))
	assert.Contains(t, err.Error(), "COMPLIANCE_BASE_URL")

	_, _, err = catalog.Resolve("", []string{"event-error-rate"})
	assert.ErrorIs(t, err, service.ErrMissingParameter)
}

func TestBuildCatalogRejectsUnknownCheck(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checks = append(cfg.Checks, config.CheckSettings{
		Check: "gpu-temperature", Threshold: "GPUTemp", Dimension: "cpu",
		Limit: 80, Direction: "lt", Unit: "%", Ticks: 1, Interval: time.Second,
	})

	_, err := buildCatalog(cfg, probeSources{})
	assert.ErrorContains(t, err, "no probe implementation")
}

func TestResolveCommand(t *testing.T) {
	cfg := testConfig(t)
	picked := func(context.Context, []*dto.CheckInfoDTO) (tui.Selection, error) {
		return tui.Selection{Mode: "custom", Checks: []string{"system-cpu"}}, nil
	}
	mustNotPick := func(context.Context, []*dto.CheckInfoDTO) (tui.Selection, error) {
		t.Fatal("selector must not run")
		return tui.Selection{}, nil
	}

	tests := []struct {
		name        string
		flags       suiteFlags
		interactive bool
		pick        selectFunc
		want        usecase.RunSuiteCommand
	}{
		{
			name:  "explicit checks win over mode",
			flags: suiteFlags{mode: "full", checks: []string{" agent-cpu ", "", "system-memory"}, samples: 3},
			pick:  mustNotPick,
			want:  usecase.RunSuiteCommand{Mode: "full", Checks: []string{"agent-cpu", "system-memory"}, Ticks: 3},
		},
		{
			name:        "mode flag",
			flags:       suiteFlags{mode: "network", interval: 2 * time.Second},
			interactive: true,
			pick:        mustNotPick,
			want:        usecase.RunSuiteCommand{Mode: "network", Interval: 2 * time.Second},
		},
		{
			name:        "non-interactive flag falls back to default mode",
			flags:       suiteFlags{nonInteractive: true, parallel: 4},
			interactive: true,
			pick:        mustNotPick,
			want:        usecase.RunSuiteCommand{Mode: "quick", Parallelism: 4},
		},
		{
			name:  "no terminal falls back to default mode",
			flags: suiteFlags{},
			pick:  mustNotPick,
			want:  usecase.RunSuiteCommand{Mode: "quick"},
		},
		{
			name:        "terminal shows selector",
			flags:       suiteFlags{},
			interactive: true,
			pick:        picked,
			want:        usecase.RunSuiteCommand{Mode: "custom", Checks: []string{"system-cpu"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCommand(context.Background(), cfg, tt.flags, tt.interactive, nil, tt.pick)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCommandErrors(t *testing.T) {
	cfg := testConfig(t)

	_, err := resolveCommand(context.Background(), cfg, suiteFlags{mode: "quick", samples: -1}, false, nil, nil)
	assert.ErrorContains(t, err, "--samples")

	cancel := func(context.Context, []*dto.CheckInfoDTO) (tui.Selection, error) {
		return tui.Selection{}, tui.ErrCancelled
	}
	_, err = resolveCommand(context.Background(), cfg, suiteFlags{}, true, nil, cancel)
	assert.ErrorIs(t, err, tui.ErrCancelled)
}

func TestReportSinks(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	sinks, err := reportSinks(cfg, &out, "")
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "console", sinks[0].Name())

	setViper(t, "output", "JSON")
	sinks, err = reportSinks(cfg, &out, "/tmp/kpi.csv")
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "stdout-json", sinks[0].Name())
	assert.Equal(t, "csv:/tmp/kpi.csv", sinks[1].Name())

	setViper(t, "output", "xml")
	_, err = reportSinks(cfg, &out, "")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestRenderCatalog(t *testing.T) {
	catalog, err := buildCatalog(testConfig(t), probeSources{})
	require.NoError(t, err)

	var table bytes.Buffer
	require.NoError(t, renderCatalog(&table, "table", catalog))
	assert.Contains(t, table.String(), "file-open-latency")
	assert.Contains(t, table.String(), "> 80 %")
	assert.Contains(t, table.String(), "compliance")

	var raw bytes.Buffer
	require.NoError(t, renderCatalog(&raw, "json", catalog))
	var listing catalogListing
	require.NoError(t, json.Unmarshal(raw.Bytes(), &listing))
	assert.Len(t, listing.Checks, 13)
	assert.Contains(t, listing.Modes, "full")
	assert.Equal(t, []string{"network-latency", "network-throughput"}, listing.Modes["network"])
}

func TestRenderCatalogShowsModeRequirements(t *testing.T) {
	catalog, err := buildCatalog(testConfig(t), probeSources{})
	require.NoError(t, err)

	var raw bytes.Buffer
	require.NoError(t, renderCatalog(&raw, "json", catalog))
	var listing catalogListing
	require.NoError(t, json.Unmarshal(raw.Bytes(), &listing))

	want := []string{"COMPLIANCE_BASE_URL", "COMPLIANCE_TOKEN", "EVENTLOG_ENABLED"}
	assert.ElementsMatch(t, want, listing.Requires["full"])
	assert.ElementsMatch(t, want, listing.Requires["compliance"])
	assert.NotContains(t, listing.Requires, "quick")
	assert.NotContains(t, listing.Requires, "network")

	var table bytes.Buffer
	require.NoError(t, renderCatalog(&table, "table", catalog))
	assert.Contains(t, table.String(), "requires COMPLIANCE_BASE_URL, COMPLIANCE_TOKEN")
	assert.Contains(t, table.String(), "EVENTLOG_ENABLED")
}

func TestRenderAuditReport(t *testing.T) {
	var out bytes.Buffer
	err := renderAuditReport(&out, "table", &usecase.AuditActivityReport{
		Policies:       3,
		ActivePolicies: 2,
		Reason:         "audit log access denied",
		Estimate: &service.AuditEstimate{
			IsEstimate:      true,
			Confidence:      service.ConfidenceLow,
			DailyOperations: 12000,
			DailyMatches:    240,
			MatchPercent:    2,
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ESTIMATE (confidence low)")
	assert.Contains(t, out.String(), "audit log access denied")

	out.Reset()
	err = renderAuditReport(&out, "table", &usecase.AuditActivityReport{Measured: true, DailyMatches: 42, Window: "24h0m0s"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Measured DLP matches per day: 42")
	assert.NotContains(t, out.String(), "ESTIMATE")
}

func TestInterruptContextCancelsOnSignal(t *testing.T) {
	ctx, stop := interruptContext(context.Background())
	defer stop()

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	if err := self.Signal(os.Interrupt); err != nil {
		t.Skipf("interrupt not deliverable on this platform: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("command context not cancelled by interrupt")
	}
}

func TestInterruptContextFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := interruptContext(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("command context must follow its parent")
	}
}

func TestBuildCatalogValidatesThresholdTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *config.CheckSettings)
		want   string
	}{
		{
			name:   "unit does not fit dimension",
			mutate: func(s *config.CheckSettings) { s.Unit = "ms" },
			want:   `unit "ms" is not valid for dimension cpu`,
		},
		{
			name:   "percent limit above 100",
			mutate: func(s *config.CheckSettings) { s.Limit = 150 },
			want:   "percent limit above 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			for i := range cfg.Checks {
				if cfg.Checks[i].Check == "agent-cpu" {
					tt.mutate(&cfg.Checks[i])
				}
			}

			_, err := buildCatalog(cfg, probeSources{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid threshold table")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
