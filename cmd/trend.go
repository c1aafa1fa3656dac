package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/usecase/rejectrate"
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show monthly reject rates, trend and compliance for a modality",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		modality, _ := cmd.Flags().GetString("modality")
		years, _ := cmd.Flags().GetIntSlice("year")

		stats, err := svc.Statistics(ctx, rejectrate.StatisticsInput{Modality: modality, Years: years})
		if err != nil {
			return errs.Wrap(err, "load statistics")
		}
		if format == "json" {
			return writeJSON(cmd, stats)
		}

		table := newTable(cmd, "MONTH", "IMAGES", "RETAKES", "RATE", "TARGET", "STATUS", "METHOD", "APPROVED")
		for _, point := range stats.Points {
			_, _ = fmt.Fprintf(table, "%s\t%d\t%d\t%.2f\t%.2f\t%s\t%s\t%t\n",
				point.Month, point.Images, point.Retakes, point.RejectRate, point.TargetRate,
				point.Status, point.Method, point.Approved)
		}
		if err := table.Flush(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if stats.Trend.InsufficientData {
			_, _ = fmt.Fprintf(out, "trend: %s (not enough months)\n", stats.Trend.Direction)
		} else {
			_, _ = fmt.Fprintf(out, "trend: %s %.2f%% (baseline %.2f%%, latest %.2f%%)\n",
				stats.Trend.Direction, stats.Trend.ChangePercent, stats.Trend.BaselineRate, stats.Trend.LatestRate)
		}
		_, _ = fmt.Fprintf(out, "compliance: %d/%d months  average: %.2f%%  overall: %.2f%%\n",
			stats.Compliance.CompliantMonths, stats.Compliance.Months,
			stats.Compliance.AverageRejectRate, stats.Compliance.OverallRejectRate)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(trendCmd)
	trendCmd.Flags().String("modality", "", "Modality, for example CR")
	trendCmd.Flags().IntSlice("year", nil, "Year to include (repeatable, default: current year)")
	addFormatFlag(trendCmd)
	_ = trendCmd.MarkFlagRequired("modality")
}
