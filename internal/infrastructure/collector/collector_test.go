package collector

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

func TestFileLatencyProbeOperations(t *testing.T) {
	dir := t.TempDir()

	for _, op := range []FileOperation{FileOpen, FileSave, FileCopy} {
		t.Run(string(op), func(t *testing.T) {
			p := NewFileLatencyProbe(op, dir, 4)
			if err := p.Preflight(context.Background()); err != nil {
				t.Fatalf("Preflight() error = %v", err)
			}

			v, err := p.Measure(context.Background())
			if err != nil {
				t.Fatalf("Measure() error = %v", err)
			}
			if v < 0 {
				t.Fatalf("expected non-negative latency, got %v", v)
			}

			if err := p.Cleanup(); err != nil {
				t.Fatalf("Cleanup() error = %v", err)
			}
			leftovers, _ := filepath.Glob(filepath.Join(dir, probeFilePrefix+"-"+string(op)+"*"))
			if len(leftovers) != 0 {
				t.Fatalf("expected probe files removed, got %v", leftovers)
			}
		})
	}
}

func TestFileLatencyProbeMissingSourceFails(t *testing.T) {
	p := NewFileLatencyProbe(FileOpen, t.TempDir(), 1)
	if _, err := p.Measure(context.Background()); err == nil {
		t.Fatalf("expected error without preflight")
	}

	empty := NewFileLatencyProbe(FileOpen, "", 1)
	if err := empty.Preflight(context.Background()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestNetworkLatencyProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := NewNetworkLatencyProbe(ln.Addr().String(), time.Second)
	if err := p.Preflight(context.Background()); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	v, err := p.Measure(context.Background())
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if v < 0 {
		t.Fatalf("expected non-negative latency, got %v", v)
	}

	bad := NewNetworkLatencyProbe("no-port", time.Second)
	if err := bad.Preflight(context.Background()); err == nil {
		t.Fatalf("expected invalid target error")
	}
}

func TestNetworkThroughputProbeComputesMbps(t *testing.T) {
	readings := []psnet.IOCountersStat{
		{Name: "eth0", BytesSent: 1_000_000, BytesRecv: 0},
		{Name: "eth0", BytesSent: 1_500_000, BytesRecv: 750_000},
	}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	call := 0

	p := NewNetworkThroughputProbe("eth0", time.Millisecond)
	p.counters = func(_ context.Context, pernic bool) ([]psnet.IOCountersStat, error) {
		if !pernic {
			t.Fatalf("expected per-interface counters")
		}
		r := readings[call]
		call++
		return []psnet.IOCountersStat{{Name: "lo"}, r}, nil
	}
	p.now = func() time.Time {
		clock = clock.Add(500 * time.Millisecond)
		return clock
	}

	v, err := p.Measure(context.Background())
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	// 1.25 MB in 0.5 s = 20 Mbps
	if v != 20 {
		t.Fatalf("expected 20 Mbps, got %v", v)
	}

	p.iface = "wlan9"
	call = 0
	if _, err := p.Measure(context.Background()); err == nil {
		t.Fatalf("expected missing interface error")
	}
}

func TestBytesRateIgnoresRestartedProcesses(t *testing.T) {
	before := map[int32]uint64{1: 1000, 2: 5000, 3: 10}
	after := map[int32]uint64{1: 3000, 2: 100, 4: 999}

	if got := bytesRate(before, after, 2*time.Second); got != 1000 {
		t.Fatalf("expected 1000 B/s, got %v", got)
	}
	if got := bytesRate(before, after, 0); got != 0 {
		t.Fatalf("expected zero rate for empty window, got %v", got)
	}
}

func TestAgentProcessFinder(t *testing.T) {
	f := NewAgentProcessFinder([]string{"MsSense.exe", " mdatp "})
	if !f.Matches("mssense") || !f.Matches("MDATP.EXE") {
		t.Fatalf("expected case-insensitive match without extension")
	}
	if f.Matches("explorer.exe") {
		t.Fatalf("unexpected match")
	}

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	f.list = func(context.Context) ([]*process.Process, error) {
		return []*process.Process{self}, nil
	}
	if _, err := f.Find(context.Background()); !errors.Is(err, ErrAgentNotRunning) {
		t.Fatalf("expected ErrAgentNotRunning, got %v", err)
	}

	name, err := self.Name()
	if err != nil {
		t.Skipf("process name unavailable: %v", err)
	}
	own := NewAgentProcessFinder([]string{name})
	own.list = f.list

	mem := NewAgentMemoryProbe(own)
	if err := mem.Preflight(context.Background()); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	rss, err := mem.Measure(context.Background())
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if rss <= 0 {
		t.Fatalf("expected positive RSS, got %v", rss)
	}
}

func TestSystemProbes(t *testing.T) {
	v, err := NewSystemMemoryProbe().Measure(context.Background())
	if err != nil {
		t.Skipf("virtual memory unavailable: %v", err)
	}
	if v <= 0 || v > 100 {
		t.Fatalf("unexpected memory percent %v", v)
	}
}
