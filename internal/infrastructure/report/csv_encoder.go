package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// SummaryRowName marks the suite summary row in CSV output
const SummaryRowName = "SUITE"

var csvHeader = []string{
	"run_id", "host", "mode", "check", "threshold", "dimension", "unit", "limit",
	"status", "observed", "mean", "min", "max", "p95",
	"success_count", "failure_count", "error", "started_at", "finished_at",
}

// CSVEncoder writes one row per check result plus a suite summary row.
type CSVEncoder struct {
	host string
}

func NewCSVEncoder(host string) *CSVEncoder {
	return &CSVEncoder{host: host}
}

func (e *CSVEncoder) ContentType() string {
	return "text/csv"
}

func (e *CSVEncoder) Extension() string {
	return "csv"
}

func (e *CSVEncoder) Encode(run *entity.SuiteRun) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.write(&buf, run, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *CSVEncoder) write(buf *bytes.Buffer, run *entity.SuiteRun, header bool) error {
	w := csv.NewWriter(buf)

	if header {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	for _, r := range run.Results() {
		if err := w.Write(e.resultRow(run, r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.CheckName(), err)
		}
	}

	if err := w.Write(e.summaryRow(run)); err != nil {
		return fmt.Errorf("write csv summary: %w", err)
	}

	w.Flush()
	return w.Error()
}

func (e *CSVEncoder) resultRow(run *entity.SuiteRun, r *entity.CheckResult) []string {
	row := []string{
		run.ID(), e.host, run.Mode().String(), r.CheckName(), r.ThresholdName(),
		r.Dimension().String(), string(r.Unit()), formatFloat(r.Limit()),
		r.Status().String(), "", "", "", "", "",
		strconv.Itoa(r.Summary().SuccessCount()), strconv.Itoa(r.Summary().FailureCount()),
		r.Err(), formatTime(r.StartedAt()), formatTime(r.FinishedAt()),
	}

	if v, ok := r.Observed(); ok {
		row[9] = formatFloat(v)
	}
	if st, ok := r.Summary().Stats(); ok {
		row[10] = formatFloat(st.Mean)
		row[11] = formatFloat(st.Min)
		row[12] = formatFloat(st.Max)
		row[13] = formatFloat(st.P95)
	}
	return row
}

// summaryRow carries the overall status and met percentage in the observed column
func (e *CSVEncoder) summaryRow(run *entity.SuiteRun) []string {
	return []string{
		run.ID(), e.host, run.Mode().String(), SummaryRowName, "", "", "%", "",
		run.OverallStatus().String(), formatFloat(run.MetPercent()), "", "", "", "",
		strconv.Itoa(run.MetCount()), strconv.Itoa(len(run.Results()) - run.MetCount()),
		"", formatTime(run.StartedAt()), formatTime(run.FinishedAt()),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
