package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/ports"
	"radreject/internal/usecase/rejectrate"
)

var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Compute, store and approve monthly reject analyses",
}

var analysisComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Reconcile RIS and archive counts for one month and modality",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		month, err := monthFlag(cmd, "month")
		if err != nil {
			return err
		}
		modality, _ := cmd.Flags().GetString("modality")
		save, _ := cmd.Flags().GetBool("save")
		actor, _ := cmd.Flags().GetString("actor")
		refresh, _ := cmd.Flags().GetBool("refresh")

		result, err := svc.ComputeAnalysis(ctx, rejectrate.ComputeInput{
			Month:    month,
			Modality: modality,
			AutoSave: save,
			Actor:    actor,
			Refresh:  refresh,
		})
		if err != nil {
			logging.Error(ctx, "compute analysis failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "compute analysis")
		}

		if format == "json" {
			return writeJSON(cmd, result)
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "run: %s\n", result.RunID)
		_, _ = fmt.Fprintf(out, "period: %s %s  method: %s\n", result.Month, result.Modality, result.Method)
		_, _ = fmt.Fprintf(out, "ris examinations: %d  pacs studies: %d\n", result.RISExaminations, result.PACSStudies)
		_, _ = fmt.Fprintf(out, "examinations: %d  images: %d  retakes: %d\n", result.TotalExaminations, result.TotalImages, result.TotalRetakes)
		_, _ = fmt.Fprintf(out, "reject rate: %.2f%%  target: %.2f%%  status: %s\n", result.Derived.RejectRate, result.Derived.TargetRate, result.Derived.Status)
		for _, warning := range result.PACSWarnings {
			_, _ = fmt.Fprintf(out, "warning: %s\n", warning)
		}
		if result.Analysis != nil {
			_, _ = fmt.Fprintf(out, "saved analysis: %d\n", result.Analysis.AnalysisID)
		}
		return nil
	}),
}

var analysisSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Store manually entered counts for one month and modality",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		month, err := monthFlag(cmd, "month")
		if err != nil {
			return err
		}
		modality, _ := cmd.Flags().GetString("modality")
		examinations, _ := cmd.Flags().GetInt64("examinations")
		images, _ := cmd.Flags().GetInt64("images")
		retakes, _ := cmd.Flags().GetInt64("retakes")
		actor, _ := cmd.Flags().GetString("actor")

		input := rejectrate.ManualAnalysisInput{
			Month:             month,
			Modality:          modality,
			TotalExaminations: examinations,
			TotalImages:       images,
			TotalRetakes:      retakes,
			Actor:             actor,
		}
		if cmd.Flags().Changed("target") {
			target, _ := cmd.Flags().GetFloat64("target")
			input.TargetRate = &target
		}

		analysis, err := svc.SaveManualAnalysis(ctx, input)
		if err != nil {
			logging.Error(ctx, "save manual analysis failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "save manual analysis")
		}
		return printAnalysis(cmd.OutOrStdout(), analysis)
	}),
}

var analysisNotesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Set corrective actions and root cause analysis",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		corrective, _ := cmd.Flags().GetString("corrective-actions")
		rootCause, _ := cmd.Flags().GetString("root-cause")

		analysis, err := svc.UpdateAnalysisNotes(ctx, rejectrate.AnalysisNotesInput{
			AnalysisID:        id,
			CorrectiveActions: corrective,
			RootCause:         rootCause,
		})
		if err != nil {
			return errs.Wrap(err, "update analysis notes")
		}
		return printAnalysis(cmd.OutOrStdout(), analysis)
	}),
}

var analysisApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve an analysis as a second reviewer",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		approver, _ := cmd.Flags().GetString("approver")

		analysis, err := svc.ApproveAnalysis(ctx, id, approver)
		if err != nil {
			logging.Error(ctx, "approve analysis failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "approve analysis")
		}
		return printAnalysis(cmd.OutOrStdout(), analysis)
	}),
}

var analysisShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored analysis of one month and modality",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		var analysis ports.Analysis
		if id, _ := cmd.Flags().GetUint64("id"); id > 0 {
			analysis, err = svc.GetAnalysisByID(ctx, id)
		} else {
			month, monthErr := monthFlag(cmd, "month")
			if monthErr != nil {
				return monthErr
			}
			modality, _ := cmd.Flags().GetString("modality")
			analysis, err = svc.GetAnalysis(ctx, month, modality)
		}
		if err != nil {
			return errs.Wrap(err, "get analysis")
		}

		if format == "json" {
			return writeJSON(cmd, analysis)
		}
		return printAnalysis(cmd.OutOrStdout(), analysis)
	}),
}

var analysisRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded computation runs",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		month, err := optionalMonthFlag(cmd, "month")
		if err != nil {
			return err
		}
		modality, _ := cmd.Flags().GetString("modality")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := svc.ListRuns(ctx, ports.AnalysisRunFilter{Month: month, Modality: modality, Limit: limit})
		if err != nil {
			return errs.Wrap(err, "list analysis runs")
		}
		if format == "json" {
			return writeJSON(cmd, runs)
		}

		table := newTable(cmd, "RUN", "MONTH", "MODALITY", "METHOD", "EXAMS", "IMAGES", "RETAKES", "WARNINGS", "SAVED", "ACTOR", "AT")
		for _, run := range runs {
			_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\t%s\t%s\n",
				run.RunID, run.Month, run.Modality, run.Method,
				run.TotalExaminations, run.TotalImages, run.TotalRetakes,
				len(run.Warnings), run.Saved, run.Actor, run.CreatedAt)
		}
		return table.Flush()
	}),
}

func printAnalysis(out io.Writer, analysis ports.Analysis) error {
	lines := []string{
		fmt.Sprintf("analysis: %d", analysis.AnalysisID),
		fmt.Sprintf("period: %s %s  method: %s", analysis.Month, analysis.Modality, analysis.Method),
		fmt.Sprintf("examinations: %d  images: %d  retakes: %d", analysis.TotalExaminations, analysis.TotalImages, analysis.TotalRetakes),
		fmt.Sprintf("reject rate: %.2f%%  target: %.2f%%  compliant: %t  status: %s", analysis.RejectRate, analysis.TargetRate, analysis.Compliance, analysis.Status()),
		fmt.Sprintf("created by: %s  updated by: %s  approved by: %s  approved at: %s", analysis.CreatedBy, valueOr(&analysis.UpdatedBy, "-"), valueOr(analysis.ApprovedBy, "-"), valueOr(analysis.ApprovalDate, "-")),
	}
	if analysis.CorrectiveActions != "" {
		lines = append(lines, "corrective actions: "+analysis.CorrectiveActions)
	}
	if analysis.RootCause != "" {
		lines = append(lines, "root cause: "+analysis.RootCause)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return errs.Wrap(err, "write analysis output")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analysisCmd)
	analysisCmd.AddCommand(analysisComputeCmd, analysisSaveCmd, analysisNotesCmd, analysisApproveCmd, analysisShowCmd, analysisRunsCmd)

	analysisComputeCmd.Flags().String("month", "", "Analysis month YYYY-MM")
	analysisComputeCmd.Flags().String("modality", "", "Modality, for example CR")
	analysisComputeCmd.Flags().Bool("save", false, "Persist the result and attach the period's incidents")
	analysisComputeCmd.Flags().String("actor", "", "Identity recorded on the run and analysis")
	analysisComputeCmd.Flags().Bool("refresh", false, "Ignore cached closed-month archive counts")
	addFormatFlag(analysisComputeCmd)
	_ = analysisComputeCmd.MarkFlagRequired("month")
	_ = analysisComputeCmd.MarkFlagRequired("modality")
	_ = analysisComputeCmd.MarkFlagRequired("actor")

	analysisSaveCmd.Flags().String("month", "", "Analysis month YYYY-MM")
	analysisSaveCmd.Flags().String("modality", "", "Modality, for example CR")
	analysisSaveCmd.Flags().Int64("examinations", 0, "Total examinations")
	analysisSaveCmd.Flags().Int64("images", 0, "Total images")
	analysisSaveCmd.Flags().Int64("retakes", 0, "Total retakes")
	analysisSaveCmd.Flags().Float64("target", 0, "Target reject rate in percent (default: stored or configured)")
	analysisSaveCmd.Flags().String("actor", "", "Quality manager identity")
	_ = analysisSaveCmd.MarkFlagRequired("month")
	_ = analysisSaveCmd.MarkFlagRequired("modality")
	_ = analysisSaveCmd.MarkFlagRequired("actor")

	analysisNotesCmd.Flags().Uint64("id", 0, "Analysis id")
	analysisNotesCmd.Flags().String("corrective-actions", "", "Corrective actions text")
	analysisNotesCmd.Flags().String("root-cause", "", "Root cause analysis text")
	_ = analysisNotesCmd.MarkFlagRequired("id")

	analysisApproveCmd.Flags().Uint64("id", 0, "Analysis id")
	analysisApproveCmd.Flags().String("approver", "", "Approver identity, distinct from the creator")
	_ = analysisApproveCmd.MarkFlagRequired("id")
	_ = analysisApproveCmd.MarkFlagRequired("approver")

	analysisShowCmd.Flags().Uint64("id", 0, "Analysis id (overrides --month/--modality)")
	analysisShowCmd.Flags().String("month", "", "Analysis month YYYY-MM")
	analysisShowCmd.Flags().String("modality", "", "Modality, for example CR")
	addFormatFlag(analysisShowCmd)

	analysisRunsCmd.Flags().String("month", "", "Filter by month YYYY-MM")
	analysisRunsCmd.Flags().String("modality", "", "Filter by modality")
	analysisRunsCmd.Flags().Int("limit", 20, "Max runs to list")
	addFormatFlag(analysisRunsCmd)
}
