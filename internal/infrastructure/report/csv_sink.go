package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// CSVFileSink appends runs to a CSV file; the header is written once when the file is created.
type CSVFileSink struct {
	path    string
	encoder *CSVEncoder
	mu      sync.Mutex
}

func NewCSVFileSink(path string, encoder *CSVEncoder) *CSVFileSink {
	return &CSVFileSink{path: path, encoder: encoder}
}

func (s *CSVFileSink) Name() string {
	return "csv:" + s.path
}

func (s *CSVFileSink) Write(_ context.Context, run *entity.SuiteRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := false
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		header = true
	case err != nil:
		return fmt.Errorf("stat %s: %w", s.path, err)
	case info.Size() == 0:
		header = true
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	var buf bytes.Buffer
	if err := s.encoder.write(&buf, run, header); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return f.Close()
}
