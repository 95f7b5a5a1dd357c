package cloudwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
	maxRetries           = 3
	initialBackoff       = 100 * time.Millisecond
)

// Suite-level metric names
const (
	MetricMetPercent   = "KPIMetPercent"
	MetricChecksByStat = "KPIChecks"
	MetricKPIMet       = "KPIMet"
)

type metricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisherConfig holds configuration for CloudWatch KPI publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "DLP/KPI")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all datapoints
	BufferSize        int               // Buffer size before auto-flush
	FlushInterval     time.Duration     // Automatic flush interval
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
}

// MetricsPublisher publishes check results to AWS CloudWatch.
// Implements port.KPIPublisher.
type MetricsPublisher struct {
	client            metricDataAPI
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32
	logger            *logger.Logger

	buffer     []types.MetricDatum
	bufferSize int
	mu         sync.Mutex

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func (cfg *MetricsPublisherConfig) applyDefaults() error {
	if cfg.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}
	return nil
}

// NewMetricsPublisher creates a new CloudWatch KPI publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig, log *logger.Logger) (*MetricsPublisher, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	awsCfg, err := BuildAWSConfig(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	p := newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg, log)
	p.flushTicker = time.NewTicker(cfg.FlushInterval)

	p.wg.Add(1)
	go p.flushLoop()

	return p, nil
}

func newMetricsPublisher(client metricDataAPI, cfg MetricsPublisherConfig, log *logger.Logger) *MetricsPublisher {
	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		logger:            log,
		buffer:            make([]types.MetricDatum, 0, cfg.BufferSize),
		bufferSize:        cfg.BufferSize,
		stopCh:            make(chan struct{}),
	}
}

// PublishResult publishes the observed value of a single check immediately.
func (p *MetricsPublisher) PublishResult(ctx context.Context, result *entity.CheckResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	data := p.resultData(result)
	if len(data) == 0 {
		return nil
	}
	return p.publishBatchWithRetry(ctx, data)
}

// PublishRun buffers suite-level datapoints; they go out on the next flush.
func (p *MetricsPublisher) PublishRun(ctx context.Context, run *entity.SuiteRun) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, datum := range p.runData(run) {
		p.buffer = append(p.buffer, datum)

		if len(p.buffer) >= p.bufferSize {
			if err := p.flushBufferUnsafe(ctx); err != nil {
				return fmt.Errorf("failed to flush buffer: %w", err)
			}
		}
	}

	return nil
}

// Flush forces immediate publication of all buffered datapoints.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushBufferUnsafe(ctx)
}

// Close stops the background flush goroutine and flushes remaining datapoints.
func (p *MetricsPublisher) Close(ctx context.Context) error {
	close(p.stopCh)
	if p.flushTicker != nil {
		p.flushTicker.Stop()
	}
	p.wg.Wait()

	return p.Flush(ctx)
}

func (p *MetricsPublisher) flushLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Flush(ctx); err != nil {
				// retried on next tick
				p.logger.Warn("CloudWatch metrics flush failed", "error", err.Error())
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// flushBufferUnsafe flushes the buffer without locking (caller must hold lock).
func (p *MetricsPublisher) flushBufferUnsafe(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(p.buffer) {
			end = len(p.buffer)
		}

		if err := p.publishBatchWithRetry(ctx, p.buffer[i:end]); err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]

	return nil
}

// publishBatchWithRetry publishes a batch of datapoints with exponential backoff retry.
func (p *MetricsPublisher) publishBatchWithRetry(ctx context.Context, data []types.MetricDatum) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data,
		}

		_, err := p.client.PutMetricData(ctx, input)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// resultData converts a check result into its observed value and a met flag.
// NoData and Errored results only emit the met flag.
func (p *MetricsPublisher) resultData(r *entity.CheckResult) []types.MetricDatum {
	ts := r.FinishedAt()
	dims := p.dimensions(
		"Check", r.CheckName(),
		"Threshold", r.ThresholdName(),
		"Dimension", string(r.Dimension()),
	)

	met := 0.0
	if r.IsMet() {
		met = 1
	}

	data := []types.MetricDatum{p.datum(MetricKPIMet, met, types.StandardUnitCount, ts, dims)}
	if v, ok := r.Observed(); ok {
		data = append(data, p.datum(r.CheckName(), v, mapUnit(r.Unit()), ts, dims))
	}
	return data
}

func (p *MetricsPublisher) runData(run *entity.SuiteRun) []types.MetricDatum {
	ts := run.FinishedAt()
	mode := run.Mode().String()

	data := []types.MetricDatum{
		p.datum(MetricMetPercent, run.MetPercent(), types.StandardUnitPercent, ts, p.dimensions("Mode", mode)),
	}

	counts := run.CountByStatus()
	for _, st := range []valueobject.Status{
		valueobject.StatusMet, valueobject.StatusWarning, valueobject.StatusCritical,
		valueobject.StatusNoData, valueobject.StatusErrored,
	} {
		dims := p.dimensions("Mode", mode, "Status", st.String())
		data = append(data, p.datum(MetricChecksByStat, float64(counts[st]), types.StandardUnitCount, ts, dims))
	}
	return data
}

func (p *MetricsPublisher) datum(name string, value float64, unit types.StandardUnit, ts time.Time, dims []types.Dimension) types.MetricDatum {
	d := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(ts),
		Dimensions: dims,
	}
	if p.storageResolution > 0 {
		d.StorageResolution = aws.Int32(p.storageResolution)
	}
	return d
}

// dimensions merges default dimensions with name/value pairs.
func (p *MetricsPublisher) dimensions(kv ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(p.defaultDimensions)+len(kv)/2)
	for key, value := range p.defaultDimensions {
		dims = append(dims, types.Dimension{Name: aws.String(key), Value: aws.String(value)})
	}
	for i := 0; i+1 < len(kv); i += 2 {
		dims = append(dims, types.Dimension{Name: aws.String(kv[i]), Value: aws.String(kv[i+1])})
	}
	return dims
}

// mapUnit maps threshold units to CloudWatch StandardUnit.
func mapUnit(unit valueobject.Unit) types.StandardUnit {
	switch unit {
	case valueobject.Percent:
		return types.StandardUnitPercent
	case valueobject.MegabytesPerS:
		return types.StandardUnitMegabytesSecond
	case valueobject.MegabitsPerS:
		return types.StandardUnitMegabitsSecond
	case valueobject.Megabytes:
		return types.StandardUnitMegabytes
	case valueobject.Milliseconds:
		return types.StandardUnitMilliseconds
	case valueobject.Count:
		return types.StandardUnitCount
	default:
		return types.StandardUnitNone
	}
}

// BuildAWSConfig creates an AWS config with optional static credentials and endpoint.
func BuildAWSConfig(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (aws.Config, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, err
	}

	// LocalStack
	if endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}
