package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMemoryProbe измеряет долю занятой физической памяти
type SystemMemoryProbe struct{}

// NewSystemMemoryProbe создает новую пробу
func NewSystemMemoryProbe() *SystemMemoryProbe {
	return &SystemMemoryProbe{}
}

func (p *SystemMemoryProbe) Name() string {
	return "system-memory"
}

// Measure возвращает процент использования памяти
func (p *SystemMemoryProbe) Measure(ctx context.Context) (float64, error) {
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	return vmStat.UsedPercent, nil
}
