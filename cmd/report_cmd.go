package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucsync/ucsync/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect sync run reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report.json>",
	Short: "Print a report written by \"ucsync sync --report\"",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := report.ReadJSON(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatText(r))
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}
