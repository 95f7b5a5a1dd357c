package collector

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileOperation измеряемая операция с файлом
type FileOperation string

const (
	FileOpen FileOperation = "open"
	FileSave FileOperation = "save"
	FileCopy FileOperation = "copy"
)

const probeFilePrefix = "kpimon-probe"

// FileLatencyProbe измеряет задержку файловой операции в мс.
// Агент DLP перехватывает открытие и запись, поэтому задержка отражает его влияние.
type FileLatencyProbe struct {
	op     FileOperation
	dir    string
	size   int
	now    func() time.Time
	source string
}

// NewFileLatencyProbe создает пробу; sizeKB размер тестового файла
func NewFileLatencyProbe(op FileOperation, dir string, sizeKB int) *FileLatencyProbe {
	if sizeKB <= 0 {
		sizeKB = 512
	}
	return &FileLatencyProbe{
		op:     op,
		dir:    dir,
		size:   sizeKB * 1024,
		now:    time.Now,
		source: filepath.Join(dir, fmt.Sprintf("%s-%s.dat", probeFilePrefix, op)),
	}
}

func (p *FileLatencyProbe) Name() string {
	return "file-" + string(p.op)
}

// Preflight создает каталог и исходный файл
func (p *FileLatencyProbe) Preflight(_ context.Context) error {
	if p.dir == "" {
		return fmt.Errorf("probe directory is not configured")
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create probe directory: %w", err)
	}

	payload := make([]byte, p.size)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("generate probe payload: %w", err)
	}
	if err := os.WriteFile(p.source, payload, 0o600); err != nil {
		return fmt.Errorf("write probe file: %w", err)
	}
	return nil
}

// Measure выполняет операцию и возвращает длительность в мс
func (p *FileLatencyProbe) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var op func() error
	switch p.op {
	case FileOpen:
		op = p.open
	case FileSave:
		op = p.save
	case FileCopy:
		op = p.copy
	default:
		return 0, fmt.Errorf("unknown file operation %q", p.op)
	}

	started := p.now()
	if err := op(); err != nil {
		return 0, err
	}
	return float64(p.now().Sub(started).Microseconds()) / 1000, nil
}

// Cleanup удаляет файлы пробы
func (p *FileLatencyProbe) Cleanup() error {
	matches, err := filepath.Glob(filepath.Join(p.dir, probeFilePrefix+"-"+string(p.op)+"*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (p *FileLatencyProbe) open() error {
	f, err := os.Open(p.source)
	if err != nil {
		return fmt.Errorf("open probe file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(io.Discard, f); err != nil {
		return fmt.Errorf("read probe file: %w", err)
	}
	return nil
}

func (p *FileLatencyProbe) save() error {
	src, err := os.ReadFile(p.source)
	if err != nil {
		return fmt.Errorf("read probe file: %w", err)
	}

	f, err := os.OpenFile(p.source+".save", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create save target: %w", err)
	}
	if _, err := f.Write(src); err != nil {
		f.Close()
		return fmt.Errorf("write save target: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync save target: %w", err)
	}
	return f.Close()
}

func (p *FileLatencyProbe) copy() error {
	src, err := os.Open(p.source)
	if err != nil {
		return fmt.Errorf("open probe file: %w", err)
	}
	defer src.Close()

	target := p.source + ".copy"
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create copy target: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy probe file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(target)
}
