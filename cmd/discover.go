package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/crawler"
	"github.com/ucsync/ucsync/internal/engine"
)

var (
	discoverAll    bool
	discoverOutput string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Crawl catalog metadata into a forest snapshot",
	Long: `Crawl the catalogs named in the config (or every catalog with --all) and
write the resulting catalog/schema/table forest as YAML. The snapshot can be
fed back to "ucsync plan --forest".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(false)
		if err != nil {
			return err
		}

		eng := engine.New(cfg, logger)
		seeds := cfg.Seeds()
		if discoverAll {
			seeds = nil
		}

		s := crawler.NewScheduler(eng.Lister, eng.Logger)
		s.MaxInFlight = cfg.Crawl.MaxInFlight
		forest, stats, err := s.Run(cmd.Context(), seeds)
		if err != nil {
			return fmt.Errorf("crawling: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, forest.Summary())
		if n := len(stats.Failures); n > 0 {
			fmt.Fprintf(out, "%d fetch job(s) failed:\n", n)
			for _, f := range stats.Failures {
				fmt.Fprintf(out, "  - %s: %v\n", f.Job, f.Err)
			}
		}

		if err := forest.WriteYAML(discoverOutput); err != nil {
			return fmt.Errorf("writing forest: %w", err)
		}
		fmt.Fprintf(out, "\nForest written to %s\n", discoverOutput)
		return nil
	},
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverAll, "all", false, "crawl every catalog in the metastore")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "forest.yaml", "output path for the forest YAML")
	rootCmd.AddCommand(discoverCmd)
}
