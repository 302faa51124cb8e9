package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"

	"mcwatch/internal/app"
)

var (
	exportFrom      string
	exportTo        string
	exportSince     string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
	exportGuild     int64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export fired alert history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
			GuildID:   exportGuild,
		}

		if exportFrom != "" && exportSince != "" {
			return fmt.Errorf("--from and --since are mutually exclusive")
		}

		if exportFrom != "" {
			from, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if exportSince != "" {
			window, err := str2duration.ParseDuration(exportSince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			from := time.Now().UTC().Add(-window)
			opts.From = &from
		}

		if exportTo != "" {
			to, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End timestamp (RFC3339, inclusive)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "Relative window such as 36h or 7d")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
	exportCmd.Flags().Int64Var(&exportGuild, "guild", 0, "Only export events from this guild")
}
