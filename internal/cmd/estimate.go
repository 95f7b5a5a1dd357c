package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
)

var estimateUsers int

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Measure or estimate daily DLP audit activity",
	Long: `Query the audit log for DLP rule matches over the configured window.
When the audit log is unavailable the daily volume is estimated from the
policy and rule configuration and the output is marked as an estimate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		log := newLogger(cfg, cmd.ErrOrStderr())
		defer func() { _ = log.Sync() }()

		sources, err := newProbeSources(cfg, nil, log)
		if err != nil {
			return err
		}
		if sources.compliance == nil {
			return fmt.Errorf("compliance API is not configured (set COMPLIANCE_ENABLED, COMPLIANCE_BASE_URL and COMPLIANCE_TOKEN)")
		}

		uc := usecase.NewEstimateAuditActivityUseCase(
			sources.compliance,
			service.NewAuditActivityEstimator(),
			usecase.EstimateAuditActivityConfig{
				UserCount:      cfg.Compliance.UserCount,
				Window:         cfg.Compliance.AuditWindow,
				MatchOperation: cfg.Compliance.MatchOperation,
				ResultSize:     cfg.Compliance.AuditResultCap,
			},
			log,
		)
		report, err := uc.Execute(ctx, usecase.EstimateAuditActivityCommand{UserCount: estimateUsers})
		if err != nil {
			return err
		}
		return renderAuditReport(cmd.OutOrStdout(), outputFormat(cfg), report)
	},
}

func renderAuditReport(out io.Writer, format string, report *usecase.AuditActivityReport) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Policies: %d (%d active)\n", report.Policies, report.ActivePolicies)
	if report.Measured {
		fmt.Fprintf(out, "Measured DLP matches per day: %.0f (audit window %s)\n", report.DailyMatches, report.Window)
		return nil
	}

	fmt.Fprintf(out, "Audit log unavailable: %s\n", report.Reason)
	if report.Estimate == nil {
		return nil
	}
	est := report.Estimate
	fmt.Fprintf(out, "ESTIMATE (confidence %s)\n", est.Confidence)
	fmt.Fprintf(out, "  operations per day: %.0f\n", est.DailyOperations)
	fmt.Fprintf(out, "  matches per day:    %.0f (%.2f%%)\n", est.DailyMatches, est.MatchPercent)
	for _, p := range est.Policies {
		fmt.Fprintf(out, "  %-40s %-26s rules %-3d matches %.0f\n", p.Policy, p.Mode, p.ActiveRules, p.DailyMatches)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().IntVar(&estimateUsers, "users", 0, "user count for the estimate (default: COMPLIANCE_USER_COUNT)")
}
