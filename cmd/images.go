package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/usecase/rejectrate"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Aggregate monthly image and study counts across archives",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		year, _ := cmd.Flags().GetInt("year")
		month, _ := cmd.Flags().GetInt("month")
		modality, _ := cmd.Flags().GetString("modality")
		server, _ := cmd.Flags().GetString("server")
		refresh, _ := cmd.Flags().GetBool("refresh")

		counts, err := svc.MonthlyImageCounts(ctx, rejectrate.ImageCountsInput{
			Year:     year,
			Month:    month,
			Modality: modality,
			Server:   server,
			Refresh:  refresh,
		})
		if err != nil && counts.Error == "" {
			logging.Error(ctx, "aggregate image counts failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "aggregate image counts")
		}

		if format == "json" {
			if jsonErr := writeJSON(cmd, counts); jsonErr != nil {
				return jsonErr
			}
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "period: %04d-%02d  modality: %s\n", year, month, valueOr(&modality, "ALL"))
		_, _ = fmt.Fprintf(out, "total images: %d  total studies: %d\n", counts.TotalImages, counts.TotalStudies)
		table := newTable(cmd, "MODALITY", "IMAGES", "STUDIES")
		for _, key := range counts.Modalities() {
			bucket := counts.ModalityBreakdown[key]
			_, _ = fmt.Fprintf(table, "%s\t%d\t%d\n", key, bucket.Images, bucket.Studies)
		}
		if flushErr := table.Flush(); flushErr != nil {
			return errs.Wrap(flushErr, "write images output")
		}
		for _, warning := range counts.Warnings {
			_, _ = fmt.Fprintf(out, "warning: %s\n", warning)
		}
		if counts.Error != "" {
			_, _ = fmt.Fprintf(out, "error: %s\n", counts.Error)
		}
		return err
	}),
}

func init() {
	rootCmd.AddCommand(imagesCmd)

	now := time.Now()
	imagesCmd.Flags().Int("year", now.Year(), "Year")
	imagesCmd.Flags().Int("month", int(now.Month()), "Month 1-12")
	imagesCmd.Flags().String("modality", "", "Modality filter, for example CR (default: all)")
	imagesCmd.Flags().String("server", "", "Query only this archive server (diagnostics)")
	imagesCmd.Flags().Bool("refresh", false, "Ignore cached closed-month counts")
	addFormatFlag(imagesCmd)
}
