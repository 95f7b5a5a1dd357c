package cmd

import (
	"github.com/spf13/cobra"
)

var checkFlags suiteFlags

var checkCmd = &cobra.Command{
	Use:   "check NAME",
	Short: "Run a single named check",
	Example: `  kpimon check file-open-latency --samples 20
  kpimon check policy-coverage -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := checkFlags
		flags.checks = []string{args[0]}
		flags.nonInteractive = true
		return executeSuite(cmd, flags)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addSuiteFlags(checkCmd, &checkFlags)
}
