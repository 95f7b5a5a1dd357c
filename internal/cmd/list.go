package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List checks, thresholds and monitoring modes",
	Long: `List every configured check with its threshold and the checks of each mode.

A mode that contains a check whose source is not configured is listed with
the settings it still needs. Such a mode fails with a missing-parameter error
when run. With the default configuration this applies to "compliance" and
"full", which need COMPLIANCE_BASE_URL and COMPLIANCE_TOKEN for the policy
checks and EVENTLOG_ENABLED=true for event-error-rate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sources, err := newProbeSources(cfg, nil, logger.NewNop())
		if err != nil {
			return err
		}
		catalog, err := buildCatalog(cfg, sources)
		if err != nil {
			return err
		}
		return renderCatalog(cmd.OutOrStdout(), outputFormat(cfg), catalog)
	},
}

type catalogListing struct {
	Checks []*dto.CheckInfoDTO  `json:"checks"`
	Modes  map[string][]string `json:"modes"`
	// Requires settings a mode still needs before it can run
	Requires map[string][]string `json:"requires,omitempty"`
}

func renderCatalog(out io.Writer, format string, catalog *usecase.CheckCatalog) error {
	listing := catalogListing{
		Checks:   catalog.Describe(),
		Modes:    make(map[string][]string),
		Requires: make(map[string][]string),
	}
	for _, mode := range valueobject.PredefinedModes() {
		checks, ok := catalog.ModeChecks(mode)
		if !ok {
			continue
		}
		listing.Modes[mode.String()] = checks
		if missing := missingParams(catalog, checks); len(missing) > 0 {
			listing.Requires[mode.String()] = missing
		}
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	table := tablewriter.NewWriter(out)
	table.Header("Check", "Dimension", "Threshold", "Limit", "Warning", "Statistic", "Samples", "Modes")
	for _, c := range listing.Checks {
		sign := "<"
		if c.Direction == valueobject.GreaterThanIsGood.String() {
			sign = ">"
		}
		if err := table.Append(
			c.Name,
			c.Dimension,
			c.Threshold,
			fmt.Sprintf("%s %g %s", sign, c.Limit, c.Unit),
			fmt.Sprintf("%g", c.WarningBound),
			c.Statistic,
			fmt.Sprintf("%d × %s", c.Ticks, time.Duration(c.IntervalMS)*time.Millisecond),
			strings.Join(c.Modes, ", "),
		); err != nil {
			return fmt.Errorf("render check %s: %w", c.Name, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	modes := make([]string, 0, len(listing.Modes))
	for mode := range listing.Modes {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	fmt.Fprintln(out)
	for _, mode := range modes {
		fmt.Fprintf(out, "%-12s %s\n", mode, strings.Join(listing.Modes[mode], ", "))
		if missing := listing.Requires[mode]; len(missing) > 0 {
			fmt.Fprintf(out, "%-12s requires %s\n", "", strings.Join(missing, ", "))
		}
	}
	return nil
}

// missingParams collects the unset settings of the given checks, without duplicates.
func missingParams(catalog *usecase.CheckCatalog, checks []string) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, name := range checks {
		def, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		for _, param := range def.MissingParams {
			if !seen[param] {
				seen[param] = true
				missing = append(missing, param)
			}
		}
	}
	return missing
}

func init() {
	rootCmd.AddCommand(listCmd)
}
