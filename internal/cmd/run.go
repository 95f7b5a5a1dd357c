package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/report"
	"github.com/dreschagin/dlp-kpi-monitor/internal/tui"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/config"
)

type suiteFlags struct {
	mode           string
	checks         []string
	samples        int
	interval       time.Duration
	exportCSV      string
	nonInteractive bool
	parallel       int
}

var runFlags suiteFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a monitoring suite",
	Long: `Run a predefined monitoring mode or an explicit list of checks.

Without --mode or --checks an interactive selector is shown on a terminal.
With --non-interactive, or when stdin is not a terminal, the configured
default mode (KPIMON_DEFAULT_MODE) is used.

The "compliance" and "full" modes include the policy and event log checks.
They fail with a missing-parameter error unless COMPLIANCE_BASE_URL,
COMPLIANCE_TOKEN and EVENTLOG_ENABLED=true are set. "kpimon list" shows
what each mode still requires.`,
	Example: `  kpimon run --mode quick
  kpimon run --checks agent-cpu,file-open-latency --samples 5 --interval 2s
  kpimon run --mode full --export-csv report.csv --non-interactive`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := runFlags
		flags.mode = viper.GetString("mode")
		return executeSuite(cmd, flags)
	},
}

// selectFunc shows the interactive selector.
type selectFunc func(ctx context.Context, checks []*dto.CheckInfoDTO) (tui.Selection, error)

func executeSuite(cmd *cobra.Command, flags suiteFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sinks, err := reportSinks(cfg, cmd.OutOrStdout(), flags.exportCSV)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, appOptions{Sinks: sinks})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	pick := func(ctx context.Context, checks []*dto.CheckInfoDTO) (tui.Selection, error) {
		return tui.Run(ctx, checks, cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	command, err := resolveCommand(ctx, cfg, flags, isInteractive(), a.catalog.Describe(), pick)
	if errors.Is(err, tui.ErrCancelled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := a.runSuite.Execute(ctx, command); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: partial results reported")
	}
	return nil
}

// resolveCommand turns flags into a suite command. An explicit check list wins
// over a mode; with neither, the selector runs only on an interactive terminal.
func resolveCommand(
	ctx context.Context,
	cfg *config.Config,
	flags suiteFlags,
	interactive bool,
	checks []*dto.CheckInfoDTO,
	pick selectFunc,
) (usecase.RunSuiteCommand, error) {
	command := usecase.RunSuiteCommand{
		Mode:        strings.TrimSpace(flags.mode),
		Ticks:       flags.samples,
		Interval:    flags.interval,
		Parallelism: flags.parallel,
	}
	for _, name := range flags.checks {
		if name = strings.TrimSpace(name); name != "" {
			command.Checks = append(command.Checks, name)
		}
	}

	if flags.samples < 0 {
		return command, fmt.Errorf("--samples must not be negative")
	}
	if flags.interval < 0 {
		return command, fmt.Errorf("--interval must not be negative")
	}

	if len(command.Checks) > 0 || command.Mode != "" {
		return command, nil
	}

	if flags.nonInteractive || !interactive || pick == nil {
		command.Mode = cfg.Sampling.DefaultMode
		return command, nil
	}

	sel, err := pick(ctx, checks)
	if err != nil {
		return command, err
	}
	command.Mode = sel.Mode
	command.Checks = sel.Checks
	return command, nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// outputFormat resolves --output, then KPIMON_OUTPUT, then OUTPUT_FORMAT.
func outputFormat(cfg *config.Config) string {
	if v := viper.GetString("output"); v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(cfg.Export.Format)
}

// reportSinks builds the stdout renderer for the chosen format plus the CSV export.
func reportSinks(cfg *config.Config, out io.Writer, csvPath string) ([]port.ReportSink, error) {
	var sinks []port.ReportSink

	switch format := outputFormat(cfg); format {
	case "", "table":
		color := report.Colors(viper.GetBool("no-color") || cfg.Export.NoColor)
		sinks = append(sinks, report.NewConsoleRenderer(out, cfg.Host, color))
	case "json":
		sinks = append(sinks, report.NewWriterSink(out, report.NewJSONEncoder(cfg.Host, true)))
	case "csv":
		sinks = append(sinks, report.NewWriterSink(out, report.NewCSVEncoder(cfg.Host)))
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	if csvPath == "" {
		csvPath = cfg.Export.CSVPath
	}
	if csvPath != "" {
		sinks = append(sinks, report.NewCSVFileSink(csvPath, report.NewCSVEncoder(cfg.Host)))
	}
	return sinks, nil
}

func addSuiteFlags(cmd *cobra.Command, flags *suiteFlags) {
	cmd.Flags().IntVarP(&flags.samples, "samples", "n", 0, "ticks per check (default: per-check setting)")
	cmd.Flags().DurationVarP(&flags.interval, "interval", "i", 0, "pause between ticks (default: per-check setting)")
	cmd.Flags().StringVar(&flags.exportCSV, "export-csv", "", "also write the report to this CSV file")
	cmd.Flags().IntVar(&flags.parallel, "parallel", 0, "checks sampled concurrently (default: SAMPLING_PARALLELISM)")
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.mode, "mode", "m", "", "monitoring mode (quick, performance, network, compliance, full)")
	runCmd.Flags().StringSliceVarP(&runFlags.checks, "checks", "c", nil, "comma-separated check names")
	runCmd.Flags().BoolVar(&runFlags.nonInteractive, "non-interactive", false, "never show the selector")
	addSuiteFlags(runCmd, &runFlags)

	_ = viper.BindPFlag("mode", runCmd.Flags().Lookup("mode"))
}
