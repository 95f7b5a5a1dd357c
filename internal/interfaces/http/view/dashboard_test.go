package view

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
)

func TestDashboardEscapesAndRendersRun(t *testing.T) {
	observed := 420.0
	data := DashboardData{
		Host: "<ws-01>",
		Latest: &dto.SuiteRunDTO{
			ID:            "run-1",
			Mode:          "quick",
			FinishedAt:    time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
			DurationMS:    12000,
			OverallStatus: "warning",
			MetPercent:    66.7,
			Counts:        dto.SuiteCountsDTO{Total: 3, Met: 2},
			Results: []*dto.CheckResultDTO{
				{CheckName: "file-open-latency", ThresholdName: "FileOpenDelay", Unit: "ms", Limit: 500, Observed: &observed, Status: "met", Summary: dto.SummaryDTO{Count: 15, SuccessCount: 15}},
				{CheckName: "agent-cpu", ThresholdName: "AgentCPU", Unit: "%", Limit: 5, Status: "errored", Error: "no agent process"},
			},
		},
		Checks: []*dto.CheckInfoDTO{
			{Name: "policy-coverage", Dimension: "policy", Threshold: "PolicyCoverage", Limit: 80, Direction: "greater_than_is_good", Unit: "%", Ticks: 1, Modes: []string{"compliance", "full"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Dashboard(data).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "&lt;ws-01&gt;")
	assert.NotContains(t, html, "<ws-01>")
	assert.Contains(t, html, "420.00 ms")
	assert.Contains(t, html, "15/15")
	assert.Contains(t, html, `title="no agent process"`)
	assert.Contains(t, html, "PolicyCoverage &gt; 80.00 %")
	assert.Contains(t, html, "WARNING")
}

func TestDashboardWithoutRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard(DashboardData{Host: "ws-01"}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No suite run recorded yet.")
}
