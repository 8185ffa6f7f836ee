package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

func newScrapeCmd() *cobra.Command {
	var (
		searchURL string
		maxPages  int
		useStatic bool
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run a single scrape synchronously and print the job summary.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer syncLogger(logger)

			if useStatic {
				cfg.Scraper.Fetcher = "static"
			}
			app, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			job, err := app.Orch.RunOnce(cmd.Context(), scraper.ScrapeParameters{
				SearchURL: searchURL,
				MaxPages:  maxPages,
				Headless:  cfg.Scraper.Fetcher == "headless",
			})
			if err != nil {
				return fmt.Errorf("run scrape: %w", err)
			}

			out, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return fmt.Errorf("render job: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if job.Status == scraper.JobStatusFailed {
				logger.Warn("scrape finished with failure", zap.String("error", job.ErrorText))
				return fmt.Errorf("scrape failed: %s", job.ErrorText)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&searchURL, "search-url", "", "override the configured search URL")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "override the configured page cap")
	cmd.Flags().BoolVar(&useStatic, "static", false, "use the plain-HTTP fetcher instead of a headless browser")
	return cmd
}
