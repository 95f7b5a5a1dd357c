package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// AgentDiskIOProbe скорость чтения и записи процессов агента в MB/s за окно window
type AgentDiskIOProbe struct {
	*AgentProcessFinder
	window time.Duration
	now    func() time.Time
}

// NewAgentDiskIOProbe создает новую пробу
func NewAgentDiskIOProbe(finder *AgentProcessFinder, window time.Duration) *AgentDiskIOProbe {
	if window <= 0 {
		window = time.Second
	}
	return &AgentDiskIOProbe{AgentProcessFinder: finder, window: window, now: time.Now}
}

func (p *AgentDiskIOProbe) Name() string {
	return "agent-disk-io"
}

// Measure снимает счетчики дважды с интервалом window
func (p *AgentDiskIOProbe) Measure(ctx context.Context) (float64, error) {
	procs, err := p.Find(ctx)
	if err != nil {
		return 0, err
	}

	before, err := ioBytes(ctx, procs)
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

	after, err := ioBytes(ctx, procs)
	if err != nil {
		return 0, err
	}

	return bytesRate(before, after, p.now().Sub(started)) / bytesPerMB, nil
}

// ioBytes сумма прочитанных и записанных байт по процессам, которые удалось прочитать
func ioBytes(ctx context.Context, procs []*process.Process) (map[int32]uint64, error) {
	out := make(map[int32]uint64, len(procs))
	for _, proc := range procs {
		io, err := proc.IOCountersWithContext(ctx)
		if err != nil || io == nil {
			continue
		}
		out[proc.Pid] = io.ReadBytes + io.WriteBytes
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("io counters unavailable for %d agent processes", len(procs))
	}
	return out, nil
}

// bytesRate байт в секунду по процессам, присутствующим в обоих снимках.
// Сброс счетчика (перезапуск процесса) дает нулевой вклад.
func bytesRate(before, after map[int32]uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	var delta uint64
	for pid, b := range before {
		a, ok := after[pid]
		if !ok || a < b {
			continue
		}
		delta += a - b
	}
	return float64(delta) / elapsed.Seconds()
}
