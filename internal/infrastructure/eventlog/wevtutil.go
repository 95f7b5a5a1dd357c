package eventlog

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
)

// CommandRunner executes a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// WevtutilSource reads Windows event log records through wevtutil.exe.
// Implements port.EventLogSource.
type WevtutilSource struct {
	run  CommandRunner
	now  func() time.Time
	path string
}

// NewWevtutilSource creates a source using wevtutil from PATH.
func NewWevtutilSource() *WevtutilSource {
	return &WevtutilSource{run: execRunner, now: time.Now, path: "wevtutil"}
}

// Preflight checks that wevtutil is available on this host.
func (s *WevtutilSource) Preflight(_ context.Context) error {
	if _, err := exec.LookPath(s.path); err != nil {
		return fmt.Errorf("event log is unavailable: %w", err)
	}
	return nil
}

func (s *WevtutilSource) Query(ctx context.Context, query port.EventQuery) ([]port.EventRecord, error) {
	if query.LogName == "" {
		return nil, fmt.Errorf("event log name is required")
	}

	args := []string{"qe", query.LogName, "/q:" + s.xpath(query), "/f:RenderedXml", "/rd:true"}
	if query.MaxEvents > 0 {
		args = append(args, fmt.Sprintf("/c:%d", query.MaxEvents))
	}

	out, err := s.run(ctx, s.path, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("wevtutil: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("wevtutil: %w", err)
	}

	return ParseEvents(bytes.NewReader(out))
}

// xpath builds the event filter for providers and the time window.
func (s *WevtutilSource) xpath(q port.EventQuery) string {
	conds := make([]string, 0, 2)
	if len(q.Providers) > 0 {
		names := make([]string, 0, len(q.Providers))
		for _, p := range q.Providers {
			names = append(names, fmt.Sprintf("@Name='%s'", strings.ReplaceAll(p, "'", "")))
		}
		conds = append(conds, "Provider["+strings.Join(names, " or ")+"]")
	}
	if !q.Since.IsZero() {
		ms := s.now().Sub(q.Since).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		conds = append(conds, fmt.Sprintf("TimeCreated[timediff(@SystemTime) <= %d]", ms))
	}
	if len(conds) == 0 {
		return "*"
	}
	return "*[System[" + strings.Join(conds, " and ") + "]]"
}

type eventXML struct {
	System struct {
		Provider struct {
			Name string `xml:"Name,attr"`
		} `xml:"Provider"`
		EventID     int `xml:"EventID"`
		Level       int `xml:"Level"`
		TimeCreated struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	RenderingInfo struct {
		Message string `xml:"Message"`
	} `xml:"RenderingInfo"`
}

// ParseEvents decodes a stream of <Event> elements without a root element.
func ParseEvents(r io.Reader) ([]port.EventRecord, error) {
	dec := xml.NewDecoder(r)
	records := make([]port.EventRecord, 0)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Event" {
			continue
		}

		var ev eventXML
		if err := dec.DecodeElement(&ev, &start); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}

		created, _ := time.Parse(time.RFC3339Nano, ev.System.TimeCreated.SystemTime)
		records = append(records, port.EventRecord{
			Provider:    ev.System.Provider.Name,
			EventID:     ev.System.EventID,
			Level:       port.EventLevel(ev.System.Level),
			TimeCreated: created,
			Message:     strings.TrimSpace(ev.RenderingInfo.Message),
		})
	}
}
