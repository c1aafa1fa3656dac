package rejectrate

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type IncidentInput struct {
	ExaminationID      uint64 `validate:"required"`
	ReasonID           uint64 `validate:"required"`
	RetakeCount        int
	OriginalTechnique  string `validate:"max=500"`
	CorrectedTechnique string `validate:"max=500"`
	PatientFactors     string `validate:"max=500"`
	EquipmentFactors   string `validate:"max=500"`
	ImmediateAction    string `validate:"max=500"`
	FollowUpRequired   bool
	Technologist       string `validate:"max=100"`
	ReportedBy         string `validate:"max=100"`
	// OccurredAt defaults to now.
	OccurredAt time.Time
	Notes      string `validate:"max=2000"`
}

// RecordIncident writes one ledger entry. The modality is copied from the
// examination so period queries need no join.
func (s *Service) RecordIncident(ctx context.Context, input IncidentInput) (ports.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Incident{}, err
	}
	if err := s.validateStruct(input); err != nil {
		return ports.Incident{}, err
	}
	technologist := strings.TrimSpace(input.Technologist)
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.rejectrate.incident"),
		slog.Uint64("examination_id", input.ExaminationID),
		slog.Uint64("reason_id", input.ReasonID),
	)

	var created ports.Incident
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		exam, err := s.repos.Examinations.GetExamination(txCtx, input.ExaminationID)
		if err != nil {
			return errs.Wrap(err, "load examination")
		}
		reason, err := s.repos.Categories.GetReason(txCtx, input.ReasonID)
		if err != nil {
			return errs.Wrap(err, "load reject reason")
		}
		category, err := s.repos.Categories.GetCategory(txCtx, reason.CategoryID)
		if err != nil {
			return errs.Wrap(err, "load reject category")
		}
		if err := reject.ValidateIncident(input.RetakeCount, technologist, reject.ReasonStatus{
			ReasonActive:   reason.Active,
			CategoryActive: category.Active,
		}); err != nil {
			return err
		}

		created, err = s.repos.Incidents.CreateIncident(txCtx, ports.Incident{
			ExaminationID:      exam.ExaminationID,
			ReasonID:           reason.ReasonID,
			Modality:           exam.Modality,
			RetakeCount:        input.RetakeCount,
			OriginalTechnique:  strings.TrimSpace(input.OriginalTechnique),
			CorrectedTechnique: strings.TrimSpace(input.CorrectedTechnique),
			PatientFactors:     strings.TrimSpace(input.PatientFactors),
			EquipmentFactors:   strings.TrimSpace(input.EquipmentFactors),
			ImmediateAction:    strings.TrimSpace(input.ImmediateAction),
			FollowUpRequired:   input.FollowUpRequired,
			Technologist:       technologist,
			ReportedBy:         strings.TrimSpace(input.ReportedBy),
			OccurredAt:         occurredAt.UTC(),
			Notes:              strings.TrimSpace(input.Notes),
		})
		return err
	})
	if err != nil {
		logging.Warn(ctx, "incident rejected", slog.Any("err", errs.Loggable(err)))
		return ports.Incident{}, err
	}

	logging.Info(ctx, "incident recorded",
		slog.Uint64("incident_id", created.IncidentID),
		slog.Int("retake_count", created.RetakeCount),
	)
	return created, nil
}

// AttachTarget names the analysis either by id or by its (month, modality) period.
type AttachTarget struct {
	AnalysisID uint64
	Month      *reject.Month
	Modality   string
}

func (s *Service) AttachIncident(ctx context.Context, incidentID uint64, target AttachTarget) (ports.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Incident{}, err
	}

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		analysisID, err := s.resolveAttachTarget(txCtx, target)
		if err != nil {
			return err
		}
		incident, err := s.repos.Incidents.GetIncident(txCtx, incidentID)
		if err != nil {
			return errs.Wrap(err, "load incident")
		}
		if err := reject.CanAttach(incident.AnalysisID, analysisID); err != nil {
			return err
		}
		return s.repos.Incidents.SetIncidentAnalysis(txCtx, incidentID, analysisID)
	})
	if err != nil {
		return ports.Incident{}, err
	}
	return s.repos.Incidents.GetIncident(ctx, incidentID)
}

func (s *Service) resolveAttachTarget(ctx context.Context, target AttachTarget) (uint64, error) {
	if target.AnalysisID > 0 {
		analysis, err := s.repos.Analyses.GetAnalysis(ctx, target.AnalysisID)
		if err != nil {
			return 0, errs.Wrap(err, "load analysis")
		}
		return analysis.AnalysisID, nil
	}
	if target.Month == nil {
		return 0, reject.Invalid("analysis_id", "analysis id or month and modality required", nil)
	}
	modality, err := requireModality(target.Modality)
	if err != nil {
		return 0, err
	}
	analysis, err := s.repos.Analyses.GetAnalysisByPeriod(ctx, *target.Month, modality)
	if err != nil {
		return 0, errs.Wrap(err, "load analysis by period")
	}
	return analysis.AnalysisID, nil
}

func (s *Service) SetFollowUp(ctx context.Context, incidentID uint64, required bool) (ports.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Incident{}, err
	}
	if err := s.repos.Incidents.SetIncidentFollowUp(ctx, incidentID, required); err != nil {
		return ports.Incident{}, errs.Wrap(err, "set incident follow-up")
	}
	return s.repos.Incidents.GetIncident(ctx, incidentID)
}

func (s *Service) ListIncidents(ctx context.Context, filter ports.IncidentFilter) ([]ports.Incident, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if filter.Modality != "" {
		normalized, err := reject.NormalizeModality(filter.Modality)
		if err != nil {
			return nil, reject.Invalid("modality", err.Error(), reject.ErrInvalidModality)
		}
		filter.Modality = normalized
	}
	incidents, err := s.repos.Incidents.ListIncidents(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list incidents")
	}
	return incidents, nil
}

// CategoryTypeTotal rolls the reason breakdown up to category type.
type CategoryTypeTotal struct {
	Type      reject.CategoryType
	Incidents int64
	Retakes   int64
	// Share is this type's percentage of the period's logged retakes.
	Share float64
}

type ReasonBreakdown struct {
	Month    reject.Month
	Modality string
	Reasons  []ports.ReasonBreakdownRow
	ByType   []CategoryTypeTotal
	Retakes  int64
}

// ReasonBreakdown summarizes logged retakes of a period per reason and per
// category type. An empty modality covers every modality.
func (s *Service) ReasonBreakdown(ctx context.Context, month reject.Month, modality string) (ReasonBreakdown, error) {
	if err := checkContext(ctx); err != nil {
		return ReasonBreakdown{}, err
	}
	normalized, err := reject.NormalizeModality(modality)
	if err != nil {
		return ReasonBreakdown{}, reject.Invalid("modality", err.Error(), reject.ErrInvalidModality)
	}

	rows, err := s.repos.Incidents.ReasonBreakdown(ctx, month, normalized)
	if err != nil {
		return ReasonBreakdown{}, errs.Wrap(err, "reason breakdown")
	}
	return summarizeReasons(month, normalized, rows), nil
}

func summarizeReasons(month reject.Month, modality string, rows []ports.ReasonBreakdownRow) ReasonBreakdown {
	out := ReasonBreakdown{Month: month, Modality: modality, Reasons: rows}
	byType := make(map[reject.CategoryType]*CategoryTypeTotal)
	order := make([]reject.CategoryType, 0)
	for _, row := range rows {
		total, ok := byType[row.CategoryType]
		if !ok {
			total = &CategoryTypeTotal{Type: row.CategoryType}
			byType[row.CategoryType] = total
			order = append(order, row.CategoryType)
		}
		total.Incidents += row.Incidents
		total.Retakes += row.Retakes
		out.Retakes += row.Retakes
	}

	out.ByType = make([]CategoryTypeTotal, 0, len(order))
	for _, categoryType := range order {
		total := *byType[categoryType]
		total.Share = reject.RejectRate(total.Retakes, out.Retakes)
		out.ByType = append(out.ByType, total)
	}
	sortTypeTotals(out.ByType)
	return out
}

// sortTypeTotals orders by retakes descending, then type name.
func sortTypeTotals(totals []CategoryTypeTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Retakes != totals[j].Retakes {
			return totals[i].Retakes > totals[j].Retakes
		}
		return totals[i].Type < totals[j].Type
	})
}
