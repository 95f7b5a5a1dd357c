package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemCPUProbe измеряет загрузку CPU всей системы за окно window
type SystemCPUProbe struct {
	window time.Duration
}

// NewSystemCPUProbe создает новую пробу
func NewSystemCPUProbe(window time.Duration) *SystemCPUProbe {
	if window <= 0 {
		window = time.Second
	}
	return &SystemCPUProbe{window: window}
}

func (p *SystemCPUProbe) Name() string {
	return "system-cpu"
}

// Measure возвращает процент использования CPU
func (p *SystemCPUProbe) Measure(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, p.window, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu percent: %w", err)
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("cpu percent is unavailable")
	}
	return percentages[0], nil
}

// logicalCores количество логических ядер, не меньше 1
func logicalCores(ctx context.Context) float64 {
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil || counts <= 0 {
		return 1
	}
	return float64(counts)
}
