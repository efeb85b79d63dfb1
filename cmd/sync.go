package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/crawler"
	"github.com/ucsync/ucsync/internal/engine"
	"github.com/ucsync/ucsync/internal/progress"
	"github.com/ucsync/ucsync/internal/report"
)

var (
	syncNumRequests int
	syncReport      string
	syncProgress    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Print the SQL that syncs every configured target catalog",
	Long: `Crawl the configured catalogs, diff every target against its pinned
catalogs and print one line of SQL per operation to stdout, in an order
where parents are created before their children.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(syncProgress)
		if err != nil {
			return err
		}
		if syncNumRequests > 0 {
			cfg.Crawl.MaxInFlight = syncNumRequests
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		eng := engine.New(cfg, logger)
		var display *progress.Display
		if syncProgress {
			display = progress.Start(cmd.ErrOrStderr(), cancel)
			eng.OnProgress = display.Update
		}

		res, err := eng.Run(ctx)
		if display != nil {
			var stats *crawler.Stats
			if res != nil {
				stats = res.Stats
			}
			if display.Finish(stats, err) {
				return errors.New("sync cancelled")
			}
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, line := range res.Statements() {
			fmt.Fprintln(out, line)
		}

		if syncReport != "" {
			if err := report.WriteJSON(report.GenerateReport(cfg, res), syncReport); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			logger.Info("report written", "path", syncReport)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncNumRequests, "num-requests", 0, "maximum concurrent metadata requests (overrides crawl.max_in_flight)")
	syncCmd.Flags().StringVar(&syncReport, "report", "", "write a JSON run report to this path")
	syncCmd.Flags().BoolVar(&syncProgress, "progress", false, "show crawl progress on stderr")
	rootCmd.AddCommand(syncCmd)
}
