package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// JSONEncoder serializes a run as its DTO.
type JSONEncoder struct {
	host   string
	indent bool
}

func NewJSONEncoder(host string, indent bool) *JSONEncoder {
	return &JSONEncoder{host: host, indent: indent}
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

func (e *JSONEncoder) Extension() string {
	return "json"
}

func (e *JSONEncoder) Encode(run *entity.SuiteRun) ([]byte, error) {
	d := dto.FromSuiteRun(run)
	d.Host = e.host

	var (
		data []byte
		err  error
	)
	if e.indent {
		data, err = json.MarshalIndent(d, "", "  ")
	} else {
		data, err = json.Marshal(d)
	}
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", run.ID(), err)
	}
	return data, nil
}

// WriterSink writes every encoded run to an io.Writer, e.g. stdout for --output json.
type WriterSink struct {
	out     io.Writer
	encoder port.ReportEncoder
}

func NewWriterSink(out io.Writer, encoder port.ReportEncoder) *WriterSink {
	return &WriterSink{out: out, encoder: encoder}
}

func (s *WriterSink) Name() string {
	return "stdout-" + s.encoder.Extension()
}

func (s *WriterSink) Write(_ context.Context, run *entity.SuiteRun) error {
	data, err := s.encoder.Encode(run)
	if err != nil {
		return err
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", s.Name(), err)
	}
	return nil
}
