package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/net"
)

// NetworkThroughputProbe суммарный трафик (отправка и прием) в Mbps за окно window
type NetworkThroughputProbe struct {
	iface    string
	window   time.Duration
	now      func() time.Time
	counters func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
}

// NewNetworkThroughputProbe создает новую пробу; пустой iface означает все интерфейсы
func NewNetworkThroughputProbe(iface string, window time.Duration) *NetworkThroughputProbe {
	if window <= 0 {
		window = time.Second
	}
	return &NetworkThroughputProbe{
		iface:    iface,
		window:   window,
		now:      time.Now,
		counters: net.IOCountersWithContext,
	}
}

func (p *NetworkThroughputProbe) Name() string {
	return "network-throughput"
}

// Preflight проверяет, что интерфейс существует
func (p *NetworkThroughputProbe) Preflight(ctx context.Context) error {
	_, err := p.read(ctx)
	return err
}

func (p *NetworkThroughputProbe) Measure(ctx context.Context) (float64, error) {
	before, err := p.read(ctx)
	if err != nil {
		return 0, err
	}
	started := p.now()

	timer := time.NewTimer(p.window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	after, err := p.read(ctx)
	if err != nil {
		return 0, err
	}

	elapsed := p.now().Sub(started).Seconds()
	if elapsed <= 0 {
		return 0, fmt.Errorf("zero measurement window")
	}
	return mbps(before, after, elapsed), nil
}

func (p *NetworkThroughputProbe) read(ctx context.Context) (net.IOCountersStat, error) {
	stats, err := p.counters(ctx, p.iface != "")
	if err != nil {
		return net.IOCountersStat{}, fmt.Errorf("read network counters: %w", err)
	}
	for _, s := range stats {
		if p.iface == "" || s.Name == p.iface {
			return s, nil
		}
	}
	if p.iface != "" {
		return net.IOCountersStat{}, fmt.Errorf("network interface %q not found", p.iface)
	}
	return net.IOCountersStat{}, fmt.Errorf("network counters are unavailable")
}

func mbps(before, after net.IOCountersStat, seconds float64) float64 {
	var delta uint64
	if after.BytesSent >= before.BytesSent {
		delta += after.BytesSent - before.BytesSent
	}
	if after.BytesRecv >= before.BytesRecv {
		delta += after.BytesRecv - before.BytesRecv
	}
	return float64(delta) * 8 / seconds / 1_000_000
}
