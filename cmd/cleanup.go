package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCleanupCmd() *cobra.Command {
	var olderThanDays int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored listings older than the retention window.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer syncLogger(logger)

			app, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			days := olderThanDays
			if days <= 0 {
				days = cfg.Storage.RetentionDays
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -days)

			removed, err := app.Records.PruneOlderThan(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("prune listings: %w", err)
			}
			logger.Info("cleanup finished",
				zap.Int("removed", removed),
				zap.Time("cutoff", cutoff),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d listings older than %s\n", removed, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "override the configured retention window")
	return cmd
}
