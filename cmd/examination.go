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

var examinationCmd = &cobra.Command{
	Use:   "examination",
	Short: "Import and count examinations from the registration system",
}

var examinationAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register one examination",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		accession, _ := cmd.Flags().GetString("accession")
		modality, _ := cmd.Flags().GetString("modality")

		input := rejectrate.ExaminationInput{AccessionNo: accession, Modality: modality}
		if raw, _ := cmd.Flags().GetString("performed-at"); raw != "" {
			performedAt, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("--performed-at: %w", err)
			}
			input.PerformedAt = performedAt
		}

		exam, err := svc.RegisterExamination(ctx, input)
		if err != nil {
			return errs.Wrap(err, "register examination")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "examination registered: %d %s %s\n", exam.ExaminationID, exam.AccessionNo, exam.Modality)
		return nil
	}),
}

var examinationCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count examinations of one month and modality",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		month, err := monthFlag(cmd, "month")
		if err != nil {
			return err
		}
		modality, _ := cmd.Flags().GetString("modality")

		count, err := svc.ExaminationCount(ctx, month, modality)
		if err != nil {
			return errs.Wrap(err, "count examinations")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s examinations: %d\n", month, modality, count)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(examinationCmd)
	examinationCmd.AddCommand(examinationAddCmd, examinationCountCmd)

	examinationAddCmd.Flags().String("accession", "", "Accession number")
	examinationAddCmd.Flags().String("modality", "", "Modality, for example CR")
	examinationAddCmd.Flags().String("performed-at", "", "Examination time RFC3339 (default: now)")
	_ = examinationAddCmd.MarkFlagRequired("accession")
	_ = examinationAddCmd.MarkFlagRequired("modality")

	examinationCountCmd.Flags().String("month", "", "Month YYYY-MM")
	examinationCountCmd.Flags().String("modality", "", "Modality, for example CR")
	_ = examinationCountCmd.MarkFlagRequired("month")
	_ = examinationCountCmd.MarkFlagRequired("modality")
}
