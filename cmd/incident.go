package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"radreject/internal/bootstrap"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/ports"
	"radreject/internal/usecase/rejectrate"
)

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Record and review retake incidents",
}

var incidentRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one retake incident against an examination",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		flags := cmd.Flags()
		examinationID, _ := flags.GetUint64("examination")
		reasonID, _ := flags.GetUint64("reason")
		retakes, _ := flags.GetInt("retakes")
		original, _ := flags.GetString("original-technique")
		corrected, _ := flags.GetString("corrected-technique")
		patient, _ := flags.GetString("patient-factors")
		equipment, _ := flags.GetString("equipment-factors")
		action, _ := flags.GetString("immediate-action")
		followUp, _ := flags.GetBool("follow-up")
		technologist, _ := flags.GetString("technologist")
		reportedBy, _ := flags.GetString("reported-by")
		notes, _ := flags.GetString("notes")

		input := rejectrate.IncidentInput{
			ExaminationID:      examinationID,
			ReasonID:           reasonID,
			RetakeCount:        retakes,
			OriginalTechnique:  original,
			CorrectedTechnique: corrected,
			PatientFactors:     patient,
			EquipmentFactors:   equipment,
			ImmediateAction:    action,
			FollowUpRequired:   followUp,
			Technologist:       technologist,
			ReportedBy:         reportedBy,
			Notes:              notes,
		}
		if raw, _ := flags.GetString("occurred-at"); raw != "" {
			occurredAt, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("--occurred-at: %w", err)
			}
			input.OccurredAt = occurredAt
		}

		incident, err := svc.RecordIncident(ctx, input)
		if err != nil {
			logging.Error(ctx, "record incident failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "record incident")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "incident recorded: %d %s retakes=%d state=%s\n",
			incident.IncidentID, incident.Modality, incident.RetakeCount, incident.State())
		return nil
	}),
}

var incidentAttachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach an unassigned incident to an analysis",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		analysisID, _ := cmd.Flags().GetUint64("analysis")
		modality, _ := cmd.Flags().GetString("modality")
		month, err := optionalMonthFlag(cmd, "month")
		if err != nil {
			return err
		}

		incident, err := svc.AttachIncident(ctx, id, rejectrate.AttachTarget{
			AnalysisID: analysisID,
			Month:      month,
			Modality:   modality,
		})
		if err != nil {
			return errs.Wrap(err, "attach incident")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "incident %d attached to analysis %d\n", incident.IncidentID, derefID(incident.AnalysisID))
		return nil
	}),
}

var incidentFollowUpCmd = &cobra.Command{
	Use:   "follow-up",
	Short: "Set or clear the follow-up flag of an incident",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *rejectrate.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		id, _ := cmd.Flags().GetUint64("id")
		required, _ := cmd.Flags().GetBool("required")
		incident, err := svc.SetFollowUp(ctx, id, required)
		if err != nil {
			return errs.Wrap(err, "set follow-up")
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "incident %d state=%s\n", incident.IncidentID, incident.State())
		return nil
	}),
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded incidents",
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
		unassigned, _ := cmd.Flags().GetBool("unassigned")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := ports.IncidentFilter{Month: month, Modality: modality, Unassigned: unassigned, Limit: limit}
		if cmd.Flags().Changed("follow-up") {
			followUp, _ := cmd.Flags().GetBool("follow-up")
			filter.FollowUpRequired = &followUp
		}
		if cmd.Flags().Changed("analysis") {
			analysisID, _ := cmd.Flags().GetUint64("analysis")
			filter.AnalysisID = &analysisID
		}

		incidents, err := svc.ListIncidents(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list incidents")
		}
		if format == "json" {
			return writeJSON(cmd, incidents)
		}
		table := newTable(cmd, "ID", "EXAM", "REASON", "MODALITY", "RETAKES", "STATE", "ANALYSIS", "TECHNOLOGIST", "OCCURRED")
		for _, incident := range incidents {
			_, _ = fmt.Fprintf(table, "%d\t%d\t%d\t%s\t%d\t%s\t%d\t%s\t%s\n",
				incident.IncidentID, incident.ExaminationID, incident.ReasonID, incident.Modality,
				incident.RetakeCount, incident.State(), derefID(incident.AnalysisID),
				incident.Technologist, incident.OccurredAt.Format(time.RFC3339))
		}
		return table.Flush()
	}),
}

var incidentBreakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Summarize logged retakes per reason and category type",
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

		breakdown, err := svc.ReasonBreakdown(ctx, month, modality)
		if err != nil {
			return errs.Wrap(err, "reason breakdown")
		}
		if format == "json" {
			return writeJSON(cmd, breakdown)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "period: %s %s  logged retakes: %d\n", breakdown.Month, valueOr(&breakdown.Modality, "ALL"), breakdown.Retakes)
		table := newTable(cmd, "TYPE", "CATEGORY", "REASON", "SEVERITY", "INCIDENTS", "RETAKES")
		for _, row := range breakdown.Reasons {
			_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%d\t%d\n",
				row.CategoryType, row.CategoryName, row.ReasonText, row.Severity, row.Incidents, row.Retakes)
		}
		if err := table.Flush(); err != nil {
			return err
		}
		for _, total := range breakdown.ByType {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d retakes in %d incidents (%.2f%%)\n", total.Type, total.Retakes, total.Incidents, total.Share)
		}
		return nil
	}),
}

func derefID(id *uint64) uint64 {
	if id == nil {
		return 0
	}
	return *id
}

func init() {
	rootCmd.AddCommand(incidentCmd)
	incidentCmd.AddCommand(incidentRecordCmd, incidentAttachCmd, incidentFollowUpCmd, incidentListCmd, incidentBreakdownCmd)

	flags := incidentRecordCmd.Flags()
	flags.Uint64("examination", 0, "Examination id")
	flags.Uint64("reason", 0, "Reject reason id")
	flags.Int("retakes", 1, "Number of retaken images")
	flags.String("original-technique", "", "Original exposure technique")
	flags.String("corrected-technique", "", "Corrected exposure technique")
	flags.String("patient-factors", "", "Contributing patient factors")
	flags.String("equipment-factors", "", "Contributing equipment factors")
	flags.String("immediate-action", "", "Immediate action taken")
	flags.Bool("follow-up", false, "Flag the incident for follow-up")
	flags.String("technologist", "", "Technologist who performed the retake")
	flags.String("reported-by", "", "Reporter identity")
	flags.String("occurred-at", "", "Occurrence time RFC3339 (default: now)")
	flags.String("notes", "", "Free-text notes")
	_ = incidentRecordCmd.MarkFlagRequired("examination")
	_ = incidentRecordCmd.MarkFlagRequired("reason")
	_ = incidentRecordCmd.MarkFlagRequired("technologist")

	incidentAttachCmd.Flags().Uint64("id", 0, "Incident id")
	incidentAttachCmd.Flags().Uint64("analysis", 0, "Analysis id")
	incidentAttachCmd.Flags().String("month", "", "Analysis month YYYY-MM (with --modality, instead of --analysis)")
	incidentAttachCmd.Flags().String("modality", "", "Analysis modality")
	_ = incidentAttachCmd.MarkFlagRequired("id")

	incidentFollowUpCmd.Flags().Uint64("id", 0, "Incident id")
	incidentFollowUpCmd.Flags().Bool("required", true, "Follow-up required")
	_ = incidentFollowUpCmd.MarkFlagRequired("id")

	incidentListCmd.Flags().String("month", "", "Filter by month YYYY-MM")
	incidentListCmd.Flags().String("modality", "", "Filter by modality")
	incidentListCmd.Flags().Bool("follow-up", false, "Filter by follow-up flag")
	incidentListCmd.Flags().Uint64("analysis", 0, "Filter by analysis id")
	incidentListCmd.Flags().Bool("unassigned", false, "Only incidents not attached to an analysis")
	incidentListCmd.Flags().Int("limit", 50, "Max incidents to list")
	addFormatFlag(incidentListCmd)

	incidentBreakdownCmd.Flags().String("month", "", "Month YYYY-MM")
	incidentBreakdownCmd.Flags().String("modality", "", "Modality (default: all)")
	addFormatFlag(incidentBreakdownCmd)
	_ = incidentBreakdownCmd.MarkFlagRequired("month")
}
