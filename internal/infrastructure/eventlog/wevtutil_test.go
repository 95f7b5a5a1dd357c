package eventlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvents = `<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><Provider Name='Microsoft-Windows-SENSE'/><EventID>5</EventID><Level>2</Level><TimeCreated SystemTime='2026-03-01T10:00:00.1234567Z'/></System><RenderingInfo Culture='en-US'><Message>Failed to connect to server</Message></RenderingInfo></Event>
<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><Provider Name='Microsoft-Windows-SENSE'/><EventID>1</EventID><Level>4</Level><TimeCreated SystemTime='2026-03-01T09:59:00Z'/></System></Event>
<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><Provider Name='Microsoft-Windows-SENSE'/><EventID>2</EventID><Level>4</Level><TimeCreated SystemTime='2026-03-01T09:58:00Z'/></System></Event>
<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'><System><Provider Name='Microsoft-Windows-SENSE'/><EventID>3</EventID><Level>1</Level><TimeCreated SystemTime='2026-03-01T09:57:00Z'/></System></Event>`

func TestParseEvents(t *testing.T) {
	records, err := ParseEvents(strings.NewReader(sampleEvents))
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "Microsoft-Windows-SENSE", records[0].Provider)
	assert.Equal(t, 5, records[0].EventID)
	assert.Equal(t, port.EventLevelError, records[0].Level)
	assert.Equal(t, "Failed to connect to server", records[0].Message)
	assert.Equal(t, 2026, records[0].TimeCreated.Year())
}

func TestWevtutilSourceQuery(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotArgs []string

	src := NewWevtutilSource()
	src.now = func() time.Time { return now }
	src.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(sampleEvents), nil
	}

	probe := NewErrorRateProbe(src, "Microsoft-Windows-SENSE/Operational",
		[]string{"Microsoft-Windows-SENSE", "O'Brien"}, time.Hour, 100)
	probe.now = src.now

	rate, err := probe.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, rate)

	require.NotEmpty(t, gotArgs)
	assert.Equal(t, "qe", gotArgs[0])
	assert.Equal(t, "Microsoft-Windows-SENSE/Operational", gotArgs[1])
	assert.Equal(t,
		"/q:*[System[Provider[@Name='Microsoft-Windows-SENSE' or @Name='OBrien'] and TimeCreated[timediff(@SystemTime) <= 3600000]]]",
		gotArgs[2])
	assert.Contains(t, gotArgs, "/c:100")
}

func TestErrorRateProbeWithoutEventsFails(t *testing.T) {
	src := NewWevtutilSource()
	src.run = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }

	_, err := NewErrorRateProbe(src, "Application", nil, time.Hour, 0).Measure(context.Background())
	assert.Error(t, err)
}
