package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func reportCmd(a *app) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run one aggregation and print the report to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()

			reporter := a.newReporter(nil)

			report, err := reporter.Run(cmd.Context())
			if err != nil {
				return err
			}

			snapshot := a.metrics.Snapshot()
			a.logger.Info("aggregation summary",
				zap.Int64("pages_fetched", snapshot.PagesFetched),
				zap.Int64("duplicates_dropped", snapshot.DuplicatesDropped),
				zap.Int64("enrichment_failures", snapshot.EnrichmentFailures),
				zap.Int64("accounts_fallbacks", snapshot.AccountsFallbacks),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if full {
				return enc.Encode(report)
			}
			return enc.Encode(report.Accounts)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "print run metadata along with the accounts")
	return cmd
}
