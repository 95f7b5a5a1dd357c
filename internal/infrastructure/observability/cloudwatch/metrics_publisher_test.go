package cloudwatch

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

type fakeMetricsClient struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeMetricsClient) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func newTestMetricsPublisher(client metricDataAPI, bufferSize int) *MetricsPublisher {
	cfg := MetricsPublisherConfig{
		Namespace:         "DLP/KPI",
		Region:            "us-east-1",
		BufferSize:        bufferSize,
		DefaultDimensions: map[string]string{"Host": "WS-042"},
	}
	_ = cfg.applyDefaults()
	return newMetricsPublisher(client, cfg, logger.NewNop())
}

func dimensionMap(dims []types.Dimension) map[string]string {
	m := make(map[string]string, len(dims))
	for _, d := range dims {
		m[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	return m
}

func TestMapUnit(t *testing.T) {
	tests := []struct {
		unit     valueobject.Unit
		expected types.StandardUnit
	}{
		{valueobject.Percent, types.StandardUnitPercent},
		{valueobject.MegabytesPerS, types.StandardUnitMegabytesSecond},
		{valueobject.MegabitsPerS, types.StandardUnitMegabitsSecond},
		{valueobject.Megabytes, types.StandardUnitMegabytes},
		{valueobject.Milliseconds, types.StandardUnitMilliseconds},
		{valueobject.Count, types.StandardUnitCount},
		{valueobject.UnitUnassigned, types.StandardUnitNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			if got := mapUnit(tt.unit); got != tt.expected {
				t.Errorf("mapUnit(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestPublishResult(t *testing.T) {
	client := &fakeMetricsClient{}
	p := newTestMetricsPublisher(client, 100)

	observed := 120.0
	finished := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	result := entity.NewCheckResult(entity.CheckResultParams{
		CheckName:  "FileOpen",
		Threshold:  valueobject.MustThreshold("FileOpenLatency", 150, valueobject.LessThanIsGood, valueobject.Milliseconds),
		Dimension:  valueobject.FileLatency,
		Observed:   &observed,
		Status:     valueobject.StatusMet,
		StartedAt:  finished.Add(-10 * time.Second),
		FinishedAt: finished,
	})

	if err := p.PublishResult(context.Background(), result); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("Expected 1 PutMetricData call, got %d", len(client.inputs))
	}

	data := client.inputs[0].MetricData
	if len(data) != 2 {
		t.Fatalf("Expected met flag and observed value, got %d datapoints", len(data))
	}
	if aws.ToString(data[0].MetricName) != MetricKPIMet || aws.ToFloat64(data[0].Value) != 1 {
		t.Errorf("Unexpected met datapoint: %v=%v", aws.ToString(data[0].MetricName), aws.ToFloat64(data[0].Value))
	}
	if aws.ToString(data[1].MetricName) != "FileOpen" || aws.ToFloat64(data[1].Value) != 120 {
		t.Errorf("Unexpected observed datapoint: %v=%v", aws.ToString(data[1].MetricName), aws.ToFloat64(data[1].Value))
	}
	if data[1].Unit != types.StandardUnitMilliseconds {
		t.Errorf("Expected Milliseconds, got %v", data[1].Unit)
	}
	if !aws.ToTime(data[1].Timestamp).Equal(finished) {
		t.Errorf("Expected timestamp %v, got %v", finished, aws.ToTime(data[1].Timestamp))
	}

	dims := dimensionMap(data[1].Dimensions)
	for k, v := range map[string]string{"Host": "WS-042", "Check": "FileOpen", "Threshold": "FileOpenLatency", "Dimension": string(valueobject.FileLatency)} {
		if dims[k] != v {
			t.Errorf("Dimension %s: expected %s, got %s", k, v, dims[k])
		}
	}
}

func TestPublishResultWithoutObservation(t *testing.T) {
	client := &fakeMetricsClient{}
	p := newTestMetricsPublisher(client, 100)

	now := time.Now()
	result := entity.NewErroredCheckResult("AgentCPU", "AgentCPU", context.DeadlineExceeded, now, now)

	if err := p.PublishResult(context.Background(), result); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}
	data := client.inputs[0].MetricData
	if len(data) != 1 || aws.ToFloat64(data[0].Value) != 0 {
		t.Errorf("Expected a single unmet flag, got %d datapoints", len(data))
	}
}

func TestPublishRunBuffersUntilFlush(t *testing.T) {
	client := &fakeMetricsClient{}
	p := newTestMetricsPublisher(client, 100)

	now := time.Now()
	run := entity.StartSuiteRun(valueobject.ModeQuick, now)
	for _, st := range []valueobject.Status{valueobject.StatusMet, valueobject.StatusMet, valueobject.StatusCritical} {
		v := 1.0
		_ = run.Append(entity.NewCheckResult(entity.CheckResultParams{
			CheckName:  "c",
			Threshold:  valueobject.MustThreshold("c", 2, valueobject.LessThanIsGood, valueobject.Count),
			Observed:   &v,
			Status:     st,
			StartedAt:  now,
			FinishedAt: now,
		}))
	}
	run.Finalize(now)

	if err := p.PublishRun(context.Background(), run); err != nil {
		t.Fatalf("PublishRun: %v", err)
	}
	if len(client.inputs) != 0 {
		t.Fatal("Expected suite datapoints to stay buffered")
	}

	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data := client.inputs[0].MetricData
	// met percent + one count per status
	if len(data) != 6 {
		t.Fatalf("Expected 6 datapoints, got %d", len(data))
	}

	counts := map[string]float64{}
	for _, d := range data[1:] {
		counts[dimensionMap(d.Dimensions)["Status"]] = aws.ToFloat64(d.Value)
	}
	if counts[valueobject.StatusMet.String()] != 2 || counts[valueobject.StatusCritical.String()] != 1 {
		t.Errorf("Unexpected status counts: %v", counts)
	}
}

func TestPublishRunAutoFlushesFullBuffer(t *testing.T) {
	client := &fakeMetricsClient{}
	p := newTestMetricsPublisher(client, 3)

	run := entity.StartSuiteRun(valueobject.ModeQuick, time.Now())
	run.Finalize(time.Now())

	if err := p.PublishRun(context.Background(), run); err != nil {
		t.Fatalf("PublishRun: %v", err)
	}
	if len(client.inputs) != 2 {
		t.Errorf("Expected 2 auto-flushes for 6 datapoints with buffer 3, got %d", len(client.inputs))
	}
	if len(p.buffer) != 0 {
		t.Errorf("Expected empty buffer, got %d", len(p.buffer))
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    MetricsPublisherConfig
		expectErr bool
	}{
		{"valid config", MetricsPublisherConfig{Namespace: "DLP/KPI", Region: "us-east-1"}, false},
		{"missing namespace", MetricsPublisherConfig{Region: "us-east-1"}, true},
		{"missing region", MetricsPublisherConfig{Namespace: "DLP/KPI"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := cfg.applyDefaults()
			if (err != nil) != tt.expectErr {
				t.Fatalf("applyDefaults() error = %v, expectErr %v", err, tt.expectErr)
			}
			if err == nil && (cfg.BufferSize != 100 || cfg.StorageResolution != 60) {
				t.Errorf("Defaults not applied: %+v", cfg)
			}
		})
	}
}
