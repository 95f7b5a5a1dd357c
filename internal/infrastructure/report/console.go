package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// Colors reports whether colored output is enabled; honours NO_COLOR and --no-color.
func Colors(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

type consoleStyles struct {
	title    lipgloss.Style
	met      lipgloss.Style
	warning  lipgloss.Style
	critical lipgloss.Style
	muted    lipgloss.Style
}

func newConsoleStyles(color bool) consoleStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return consoleStyles{title: plain, met: plain, warning: plain, critical: plain, muted: plain}
	}

	return consoleStyles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		met:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		critical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// ConsoleRenderer prints a suite run as a table followed by the overall verdict.
type ConsoleRenderer struct {
	out    io.Writer
	host   string
	styles consoleStyles
}

func NewConsoleRenderer(out io.Writer, host string, color bool) *ConsoleRenderer {
	return &ConsoleRenderer{out: out, host: host, styles: newConsoleStyles(color)}
}

func (c *ConsoleRenderer) Name() string {
	return "console"
}

func (c *ConsoleRenderer) Write(_ context.Context, run *entity.SuiteRun) error {
	fmt.Fprintln(c.out, c.styles.title.Render(
		fmt.Sprintf("DLP KPI report: %s, mode %s, %s", c.host, run.Mode(), run.StartedAt().Format("2006-01-02 15:04:05"))))

	table := tablewriter.NewWriter(c.out)
	table.Header("Check", "Threshold", "Limit", "Observed", "Samples", "Status")

	for _, r := range run.Results() {
		if err := table.Append(c.row(r)...); err != nil {
			return fmt.Errorf("render row %s: %w", r.CheckName(), err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	counts := run.CountByStatus()
	fmt.Fprintf(c.out, "%s  %.1f%% met (%d/%d), warning %d, critical %d, no data %d, errored %d, took %s\n",
		c.overall(run.OverallStatus()),
		run.MetPercent(), counts[valueobject.StatusMet], len(run.Results()),
		counts[valueobject.StatusWarning], counts[valueobject.StatusCritical],
		counts[valueobject.StatusNoData], counts[valueobject.StatusErrored],
		run.Duration().Round(time.Millisecond))

	for _, r := range run.Results() {
		if r.Err() != "" {
			fmt.Fprintln(c.out, c.styles.muted.Render(fmt.Sprintf("  %s: %s", r.CheckName(), r.Err())))
		}
	}
	return nil
}

func (c *ConsoleRenderer) row(r *entity.CheckResult) []any {
	limit := "-"
	if r.Unit() != valueobject.UnitUnassigned {
		limit = r.Unit().Format(r.Limit())
	}

	observed := "-"
	if v, ok := r.Observed(); ok {
		observed = r.Unit().Format(v)
	}

	samples := fmt.Sprintf("%d/%d", r.Summary().SuccessCount(), r.Summary().Count())

	return []any{r.CheckName(), r.ThresholdName(), limit, observed, samples, c.status(r.Status())}
}

func (c *ConsoleRenderer) status(s valueobject.Status) string {
	label := strings.ToUpper(strings.ReplaceAll(s.String(), "_", " "))
	switch s {
	case valueobject.StatusMet:
		return c.styles.met.Render(label)
	case valueobject.StatusWarning:
		return c.styles.warning.Render(label)
	case valueobject.StatusCritical, valueobject.StatusErrored:
		return c.styles.critical.Render(label)
	default:
		return c.styles.muted.Render(label)
	}
}

func (c *ConsoleRenderer) overall(s valueobject.OverallStatus) string {
	label := "Overall: " + strings.ToUpper(s.String())
	switch s {
	case valueobject.Healthy:
		return c.styles.met.Render(label)
	case valueobject.OverallWarning:
		return c.styles.warning.Render(label)
	default:
		return c.styles.critical.Render(label)
	}
}
