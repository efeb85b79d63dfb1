package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ucsync",
	Short: "ucsync - keep Unity Catalog catalogs in sync with pinned references",
	Long: `ucsync crawls Unity Catalog metadata for the configured catalogs, compares
each target catalog with its pinned reference catalogs and prints the SQL
(CREATE, CLONE, DROP) that brings the target up to date.

Statements are written to stdout; nothing is executed.`,
	SilenceUsage: true,
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}

// loadConfig loads and validates the config and builds the run logger.
// quiet raises the stderr level to error unless --log-level is set.
func loadConfig(quiet bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config invalid: %w", err)
	}

	level := cfg.Logging.Level
	switch {
	case logLevel != "":
		level = logLevel
	case quiet:
		level = "error"
	}
	logger, err := logging.Setup(level, cfg.Logging.Directory)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, logger, nil
}
