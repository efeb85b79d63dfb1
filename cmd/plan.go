package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/crawler"
	"github.com/ucsync/ucsync/internal/engine"
	"github.com/ucsync/ucsync/internal/progress"
)

var planForest string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the operation tree for every configured target",
	Long: `Diff every target catalog against its pinned catalogs and print the
resulting operation trees followed by their SQL. With --forest the diff runs
against a snapshot written by "ucsync discover" instead of crawling.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(false)
		if err != nil {
			return err
		}
		eng := engine.New(cfg, logger)

		var (
			forest *catalog.Forest
			stats  *crawler.Stats
		)
		if planForest != "" {
			forest, err = catalog.LoadYAML(planForest)
			if err != nil {
				return err
			}
		} else {
			forest, stats, err = eng.Crawl(cmd.Context())
			if err != nil {
				return fmt.Errorf("crawling: %w", err)
			}
		}

		plans, err := eng.Plan(forest, stats)
		if err != nil {
			return fmt.Errorf("planning: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, p := range plans {
			title := fmt.Sprintf("%s <- %s", p.Target, strings.Join(p.Pinned, ", "))
			if cfg.Generation.Mode == config.ModePolicy {
				fmt.Fprintf(out, "%s (policy mode)\n", title)
			} else {
				fmt.Fprint(out, progress.RenderPlan(title, p.Root))
			}
			for _, line := range p.Statements {
				fmt.Fprintf(out, "    %s\n", line)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planForest, "forest", "", "diff a forest snapshot instead of crawling")
	rootCmd.AddCommand(planCmd)
}
