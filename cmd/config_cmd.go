package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and validate the ucsync configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Host:               %s\n", cfg.Host)
		fmt.Fprintf(out, "  Token:              %s\n", maskSecret(cfg.Token))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Catalogs:")
		for _, e := range cfg.Catalogs {
			fmt.Fprintf(out, "    %s <- %s\n", e.Catalog, strings.Join(e.PinnedCatalogs, ", "))
		}
		fmt.Fprintln(out)
		g := cfg.Generation
		fmt.Fprintln(out, "  Generation:")
		fmt.Fprintf(out, "    Mode:             %s\n", g.Mode)
		fmt.Fprintf(out, "    Max Staleness:    %s\n", g.Staleness())
		fmt.Fprintf(out, "    Deep Clone:       %t\n", g.DeepCloneNonManaged)
		fmt.Fprintf(out, "    Create Schemas:   %t\n", g.CreateSchemaIfMissing)
		fmt.Fprintf(out, "    Replace Strategy: %s\n", g.ReplaceStrategy)
		fmt.Fprintln(out)
		c := cfg.Crawl
		fmt.Fprintln(out, "  Crawl:")
		fmt.Fprintf(out, "    Max In Flight:    %d\n", c.MaxInFlight)
		fmt.Fprintf(out, "    Requests/sec:     %g\n", c.RequestsPerSecond)
		fmt.Fprintf(out, "    Max Retries:      %d\n", c.MaxRetries)
		fmt.Fprintf(out, "    Strict:           %t\n", c.Strict)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		out := cmd.OutOrStdout()
		var verr *config.ValidationError
		if err := cfg.Validate(); errors.As(err, &verr) {
			fmt.Fprintln(out, "Validation errors:")
			for _, p := range verr.Problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			return fmt.Errorf("%d validation error(s)", len(verr.Problems))
		}

		fmt.Fprintln(out, "Configuration is valid.")
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
