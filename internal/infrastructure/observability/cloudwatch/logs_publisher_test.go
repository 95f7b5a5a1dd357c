package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	applicationPort "github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

type fakeLogsClient struct {
	puts       []*cloudwatchlogs.PutLogEventsInput
	putErrs    []error
	groupErr   error
	streamErr  error
	groupCalls int
}

func (f *fakeLogsClient) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.puts = append(f.puts, in)
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: aws.String("next")}, nil
}

func (f *fakeLogsClient) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.groupCalls++
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogsClient) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, f.streamErr
}

func newTestLogsPublisher(client *fakeLogsClient) *LogsPublisher {
	return newLogsPublisher(client, LogsPublisherConfig{
		LogGroupName:  "/dlp/kpi",
		LogStreamName: "WS-042",
		BufferSize:    50,
		Source:        "WS-042",
	})
}

func TestConvertToLogEvent(t *testing.T) {
	p := newTestLogsPublisher(&fakeLogsClient{})

	timestamp := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	entry := applicationPort.LogEntry{
		Timestamp: timestamp,
		Level:     applicationPort.LogLevelWarn,
		Message:   "Probe failed",
		Source:    "WS-042",
		Fields: map[string]interface{}{
			"check": "FileOpen",
			"tick":  3,
		},
	}

	event, err := p.convertToLogEvent(entry)
	if err != nil {
		t.Fatalf("Failed to convert log entry: %v", err)
	}

	if event.Timestamp == nil || *event.Timestamp != timestamp.UnixMilli() {
		t.Errorf("Expected Timestamp=%d, got %v", timestamp.UnixMilli(), event.Timestamp)
	}

	var logData map[string]interface{}
	if err := json.Unmarshal([]byte(*event.Message), &logData); err != nil {
		t.Fatalf("Failed to parse log message as JSON: %v", err)
	}

	if logData["level"] != "WARN" {
		t.Errorf("Expected level=WARN, got %v", logData["level"])
	}
	if logData["source"] != "WS-042" {
		t.Errorf("Expected source=WS-042, got %v", logData["source"])
	}

	fields, ok := logData["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected fields to be a map")
	}
	if fields["check"] != "FileOpen" {
		t.Errorf("Expected check=FileOpen, got %v", fields["check"])
	}
	if tick, ok := fields["tick"].(float64); !ok || tick != 3 {
		t.Errorf("Expected tick=3, got %v", fields["tick"])
	}
}

func TestConvertToLogEvent_Truncation(t *testing.T) {
	p := newTestLogsPublisher(&fakeLogsClient{})

	event, err := p.convertToLogEvent(applicationPort.LogEntry{
		Timestamp: time.Now(),
		Level:     applicationPort.LogLevelInfo,
		Message:   strings.Repeat("x", maxLogEventSize+1000),
	})
	if err != nil {
		t.Fatalf("Failed to convert log entry: %v", err)
	}

	msg := *event.Message
	if len(msg) > maxLogEventSize {
		t.Errorf("Expected message to be truncated to %d bytes, got %d", maxLogEventSize, len(msg))
	}
	if !strings.HasSuffix(msg, "...") {
		t.Error("Expected truncation marker '...' at end of message")
	}
}

func TestFlushSortsChronologically(t *testing.T) {
	client := &fakeLogsClient{}
	p := newTestLogsPublisher(client)

	now := time.Now()
	err := p.PublishBatch(context.Background(), []applicationPort.LogEntry{
		{Timestamp: now.Add(5 * time.Second), Level: applicationPort.LogLevelInfo, Message: "Third"},
		{Timestamp: now, Level: applicationPort.LogLevelInfo, Message: "First"},
		{Timestamp: now.Add(2 * time.Second), Level: applicationPort.LogLevelInfo, Message: "Second"},
	})
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(client.puts) != 0 {
		t.Fatal("Expected entries to stay buffered until flush")
	}

	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(client.puts) != 1 {
		t.Fatalf("Expected one PutLogEvents call, got %d", len(client.puts))
	}

	events := client.puts[0].LogEvents
	for i, want := range []string{"First", "Second", "Third"} {
		if !strings.Contains(*events[i].Message, want) {
			t.Errorf("Event %d: expected %s, got %s", i, want, *events[i].Message)
		}
	}
}

func TestFlushRetriesWithExpectedSequenceToken(t *testing.T) {
	client := &fakeLogsClient{putErrs: []error{
		&types.InvalidSequenceTokenException{ExpectedSequenceToken: aws.String("expected")},
	}}
	p := newTestLogsPublisher(client)

	if err := p.Publish(context.Background(), applicationPort.LogEntry{Timestamp: time.Now(), Message: "m"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(client.puts) != 2 {
		t.Fatalf("Expected a retry, got %d calls", len(client.puts))
	}
	if got := aws.ToString(client.puts[1].SequenceToken); got != "expected" {
		t.Errorf("Expected retry with token 'expected', got %q", got)
	}
}

func TestFlushKeepsBufferOnFailure(t *testing.T) {
	boom := errors.New("throttled")
	client := &fakeLogsClient{putErrs: []error{boom, boom, boom}}
	p := newTestLogsPublisher(client)

	_ = p.Publish(context.Background(), applicationPort.LogEntry{Timestamp: time.Now(), Message: "m"})
	if err := p.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected throttled error, got %v", err)
	}
	if len(p.buffer) != 1 {
		t.Errorf("Expected entry to remain buffered, got %d", len(p.buffer))
	}
}

func TestHookQueuesWarningsOnly(t *testing.T) {
	client := &fakeLogsClient{}
	p := newTestLogsPublisher(client)

	hook := p.Hook()
	hook(logger.INFO, "Check completed", nil)
	hook(logger.WARN, "Probe failed", map[string]interface{}{"check": "FileSave"})
	hook(logger.ERROR, "Check errored", nil)

	if len(p.buffer) != 2 {
		t.Fatalf("Expected 2 queued entries, got %d", len(p.buffer))
	}
	if p.buffer[0].Source != "WS-042" || p.buffer[0].Level != applicationPort.LogLevelWarn {
		t.Errorf("Unexpected entry: %+v", p.buffer[0])
	}
	if len(client.puts) != 0 {
		t.Error("Hook must not call CloudWatch synchronously")
	}
}

func TestEnsureLogGroupAndStreamIgnoresExisting(t *testing.T) {
	client := &fakeLogsClient{
		groupErr:  &types.ResourceAlreadyExistsException{},
		streamErr: &types.ResourceAlreadyExistsException{},
	}
	p := newTestLogsPublisher(client)

	if err := p.ensureLogGroupAndStream(context.Background()); err != nil {
		t.Fatalf("Expected existing resources to be accepted, got %v", err)
	}
	if client.groupCalls != 1 {
		t.Errorf("Expected CreateLogGroup to be called once, got %d", client.groupCalls)
	}
}
