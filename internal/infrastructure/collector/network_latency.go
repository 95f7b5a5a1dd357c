package collector

import (
	"context"
	"fmt"
	"net"
	"time"
)

// NetworkLatencyProbe время установки TCP соединения с target в мс.
// Сетевой фильтр агента участвует в каждом новом соединении.
type NetworkLatencyProbe struct {
	target string
	dialer *net.Dialer
	now    func() time.Time
}

// NewNetworkLatencyProbe создает пробу; target в формате host:port
func NewNetworkLatencyProbe(target string, timeout time.Duration) *NetworkLatencyProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NetworkLatencyProbe{
		target: target,
		dialer: &net.Dialer{Timeout: timeout},
		now:    time.Now,
	}
}

func (p *NetworkLatencyProbe) Name() string {
	return "network-latency"
}

// Preflight проверяет формат адреса
func (p *NetworkLatencyProbe) Preflight(_ context.Context) error {
	if _, _, err := net.SplitHostPort(p.target); err != nil {
		return fmt.Errorf("invalid network target %q: %w", p.target, err)
	}
	return nil
}

func (p *NetworkLatencyProbe) Measure(ctx context.Context) (float64, error) {
	started := p.now()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.target)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", p.target, err)
	}
	elapsed := p.now().Sub(started)
	_ = conn.Close()

	return float64(elapsed.Microseconds()) / 1000, nil
}
