package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrAgentNotRunning ни один процесс агента DLP не найден
var ErrAgentNotRunning = errors.New("DLP agent process not found")

const bytesPerMB = 1024 * 1024

// AgentProcessFinder находит процессы агента по именам (без учета регистра и .exe)
type AgentProcessFinder struct {
	names map[string]struct{}
	list  func(ctx context.Context) ([]*process.Process, error)
}

// NewAgentProcessFinder создает новый finder
func NewAgentProcessFinder(names []string) *AgentProcessFinder {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if key := normalizeProcessName(n); key != "" {
			set[key] = struct{}{}
		}
	}
	return &AgentProcessFinder{names: set, list: process.ProcessesWithContext}
}

// Find возвращает процессы агента; ErrAgentNotRunning если их нет
func (f *AgentProcessFinder) Find(ctx context.Context) ([]*process.Process, error) {
	if len(f.names) == 0 {
		return nil, fmt.Errorf("no agent process names configured")
	}

	procs, err := f.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	matched := make([]*process.Process, 0, 4)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// процесс мог завершиться между перечислением и чтением имени
			continue
		}
		if f.Matches(name) {
			matched = append(matched, p)
		}
	}

	if len(matched) == 0 {
		return nil, ErrAgentNotRunning
	}
	return matched, nil
}

// Matches сравнивает имя процесса со списком агента
func (f *AgentProcessFinder) Matches(name string) bool {
	_, ok := f.names[normalizeProcessName(name)]
	return ok
}

// Preflight проверяет, что агент запущен
func (f *AgentProcessFinder) Preflight(ctx context.Context) error {
	_, err := f.Find(ctx)
	return err
}

func normalizeProcessName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
}

// AgentCPUProbe суммарная загрузка CPU процессами агента, нормированная на число ядер
type AgentCPUProbe struct {
	*AgentProcessFinder
	window time.Duration
}

func NewAgentCPUProbe(finder *AgentProcessFinder, window time.Duration) *AgentCPUProbe {
	if window <= 0 {
		window = time.Second
	}
	return &AgentCPUProbe{AgentProcessFinder: finder, window: window}
}

func (p *AgentCPUProbe) Name() string {
	return "agent-cpu"
}

func (p *AgentCPUProbe) Measure(ctx context.Context) (float64, error) {
	procs, err := p.Find(ctx)
	if err != nil {
		return 0, err
	}

	// замеры процессов идут параллельно, чтобы окно было общим
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total float64
		ok    int
	)
	for _, proc := range procs {
		wg.Add(1)
		go func(proc *process.Process) {
			defer wg.Done()
			pct, err := proc.PercentWithContext(ctx, p.window)
			if err != nil {
				return
			}
			mu.Lock()
			total += pct
			ok++
			mu.Unlock()
		}(proc)
	}
	wg.Wait()

	if ok == 0 {
		return 0, fmt.Errorf("cpu usage unavailable for %d agent processes", len(procs))
	}
	return total / logicalCores(ctx), nil
}

// AgentMemoryProbe суммарный RSS процессов агента в MB
type AgentMemoryProbe struct {
	*AgentProcessFinder
}

func NewAgentMemoryProbe(finder *AgentProcessFinder) *AgentMemoryProbe {
	return &AgentMemoryProbe{AgentProcessFinder: finder}
}

func (p *AgentMemoryProbe) Name() string {
	return "agent-memory"
}

func (p *AgentMemoryProbe) Measure(ctx context.Context) (float64, error) {
	procs, err := p.Find(ctx)
	if err != nil {
		return 0, err
	}

	var rss uint64
	read := 0
	for _, proc := range procs {
		info, err := proc.MemoryInfoWithContext(ctx)
		if err != nil || info == nil {
			continue
		}
		rss += info.RSS
		read++
	}
	if read == 0 {
		return 0, fmt.Errorf("memory info unavailable for %d agent processes", len(procs))
	}
	return float64(rss) / bytesPerMB, nil
}
