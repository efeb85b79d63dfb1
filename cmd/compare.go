package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/diff"
	"github.com/ucsync/ucsync/internal/logging"
	"github.com/ucsync/ucsync/internal/progress"
	"github.com/ucsync/ucsync/internal/querygen"
)

var (
	compareStaleness    int
	compareCreateSchema bool
	compareDeepClone    bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <source.yaml> <target.yaml>",
	Short: "Diff two forest snapshots catalog by catalog",
	Long: `Compare two snapshots written by "ucsync discover", for example from two
workspaces, matching catalogs by name. Catalogs missing from the target are
created and catalogs only in the target are dropped. The operation tree is
printed followed by its SQL. No config file or network access is needed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := compareLogger()

		source, err := catalog.LoadYAML(args[0])
		if err != nil {
			return err
		}
		target, err := catalog.LoadYAML(args[1])
		if err != nil {
			return err
		}

		opts := config.GenerationConfig{MaxStalenessHours: compareStaleness}
		root := diff.New(diff.Options{
			Staleness:             opts.Staleness(),
			CreateSchemaIfMissing: compareCreateSchema,
		}, logger).DiffForest(source, target)
		lines := querygen.New(querygen.Options{DeepCloneNonManaged: compareDeepClone}, logger).Render(root)

		out := cmd.OutOrStdout()
		fmt.Fprint(out, progress.RenderPlan(fmt.Sprintf("%s -> %s", args[0], args[1]), root))
		for _, line := range lines {
			fmt.Fprintf(out, "    %s\n", line)
		}
		return nil
	},
}

func compareLogger() *slog.Logger {
	level := logLevel
	if level == "" {
		level = "warn"
	}
	logger, err := logging.Setup(level, "")
	if err != nil {
		return slog.Default()
	}
	return logger
}

func init() {
	compareCmd.Flags().IntVar(&compareStaleness, "max-staleness-hours", 1, "re-clone tables lagging their source by more than this")
	compareCmd.Flags().BoolVar(&compareCreateSchema, "create-schema-if-missing", true, "create schemas missing from existing target catalogs")
	compareCmd.Flags().BoolVar(&compareDeepClone, "deep-clone-non-managed", false, "deep-clone tables that are not MANAGED DELTA")
	rootCmd.AddCommand(compareCmd)
}
