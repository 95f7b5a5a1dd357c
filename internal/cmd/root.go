package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	thresholdsFile string
	output         string
	logLevel       string
	debug          bool
	noColor        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kpimon",
	Short: "DLP endpoint agent KPI monitor",
	Long: `kpimon samples DLP agent and host metrics, aggregates them and assesses
each result against a named KPI threshold.

A suite run completes with an overall status of healthy, warning or critical
and exits 0. The exit code is 1 when the suite could not be orchestrated
(unknown mode, unknown check, missing parameter) or was interrupted.

Ctrl-C stops sampling between ticks, marks unfinished checks errored and still
writes the partial report. A second Ctrl-C terminates immediately.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// NewRootCommand returns the root command, used by tests.
func NewRootCommand() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := interruptContext(context.Background())
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// interruptContext is cancelled by the first SIGINT or SIGTERM. After that the
// default handlers are restored so a second signal kills the process.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&thresholdsFile, "thresholds", "", "YAML file overriding thresholds and modes")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = viper.BindPFlag("thresholds", rootCmd.PersistentFlags().Lookup("thresholds"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
}

// initConfig lets KPIMON_* environment variables stand in for flags.
func initConfig() {
	viper.SetEnvPrefix("KPIMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
