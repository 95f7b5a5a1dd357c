package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
)

// ErrorRateProbe returns the percentage of Critical/Error events among all
// events of the agent providers in the trailing window.
type ErrorRateProbe struct {
	source    port.EventLogSource
	logName   string
	providers []string
	window    time.Duration
	maxEvents int
	now       func() time.Time
}

func NewErrorRateProbe(source port.EventLogSource, logName string, providers []string, window time.Duration, maxEvents int) *ErrorRateProbe {
	return &ErrorRateProbe{
		source:    source,
		logName:   logName,
		providers: providers,
		window:    window,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

func (p *ErrorRateProbe) Name() string {
	return "event-error-rate"
}

// Preflight delegates to the source when it can check availability.
func (p *ErrorRateProbe) Preflight(ctx context.Context) error {
	if pf, ok := p.source.(port.Preflighter); ok {
		return pf.Preflight(ctx)
	}
	return nil
}

func (p *ErrorRateProbe) Measure(ctx context.Context) (float64, error) {
	records, err := p.source.Query(ctx, port.EventQuery{
		LogName:   p.logName,
		Providers: p.providers,
		Since:     p.now().Add(-p.window),
		MaxEvents: p.maxEvents,
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("no events from %v in the last %s", p.providers, p.window)
	}

	errorsSeen := 0
	for _, r := range records {
		if r.Level.IsError() {
			errorsSeen++
		}
	}
	return float64(errorsSeen) / float64(len(records)) * 100, nil
}
