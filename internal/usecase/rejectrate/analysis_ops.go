package rejectrate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type ManualAnalysisInput struct {
	Month             reject.Month
	Modality          string `validate:"required,max=10"`
	TotalExaminations int64  `validate:"gte=0"`
	TotalImages       int64  `validate:"gte=0"`
	TotalRetakes      int64  `validate:"gte=0"`
	// TargetRate nil keeps the stored target, or the configured default for a new period.
	TargetRate *float64 `validate:"omitnil,gte=0,lte=100"`
	Actor      string   `validate:"required"`
}

// SaveManualAnalysis stores counts entered by hand. Derived fields are
// recomputed exactly as for computed analyses.
func (s *Service) SaveManualAnalysis(ctx context.Context, input ManualAnalysisInput) (ports.Analysis, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Analysis{}, err
	}
	input.Actor = strings.TrimSpace(input.Actor)
	if err := s.validateStruct(input); err != nil {
		return ports.Analysis{}, err
	}
	modality, err := requireModality(input.Modality)
	if err != nil {
		return ports.Analysis{}, err
	}

	counts := reject.Counts{
		Examinations: input.TotalExaminations,
		Images:       input.TotalImages,
		Retakes:      input.TotalRetakes,
	}
	if err := reject.ValidateCounts(counts); err != nil {
		return ports.Analysis{}, err
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.rejectrate.manual"),
		slog.String("month", input.Month.String()),
		slog.String("modality", modality),
		slog.String("actor", input.Actor),
	)

	var saved ports.Analysis
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		target := s.opts.TargetRate
		if input.TargetRate != nil {
			if err := reject.ValidateTargetRate(*input.TargetRate); err != nil {
				return err
			}
			target = *input.TargetRate
		} else {
			stored, err := s.targetRateFor(txCtx, input.Month, modality)
			if err != nil {
				return err
			}
			target = stored
		}

		analysis, err := s.repos.Analyses.UpsertAnalysis(txCtx, ports.AnalysisUpsert{
			Month:    input.Month,
			Modality: modality,
			Counts:   counts,
			Derived:  reject.ComputeDerivedFields(counts, target),
			Method:   reject.MethodManual,
			Actor:    input.Actor,
			At:       s.timestamp(),
		})
		if err != nil {
			return errs.Wrap(err, "upsert analysis")
		}
		saved = analysis
		return nil
	})
	if err != nil {
		return ports.Analysis{}, err
	}

	logging.Info(ctx, "manual analysis saved",
		slog.Uint64("analysis_id", saved.AnalysisID),
		slog.Float64("reject_rate", saved.RejectRate),
	)
	return saved, nil
}

type AnalysisNotesInput struct {
	AnalysisID        uint64 `validate:"required"`
	CorrectiveActions string `validate:"max=4000"`
	RootCause         string `validate:"max=4000"`
}

// UpdateAnalysisNotes edits free-text fields only; counts and approval are untouched.
func (s *Service) UpdateAnalysisNotes(ctx context.Context, input AnalysisNotesInput) (ports.Analysis, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Analysis{}, err
	}
	if err := s.validateStruct(input); err != nil {
		return ports.Analysis{}, err
	}
	if err := s.repos.Analyses.UpdateAnalysisNotes(ctx, input.AnalysisID,
		strings.TrimSpace(input.CorrectiveActions),
		strings.TrimSpace(input.RootCause),
		s.timestamp(),
	); err != nil {
		return ports.Analysis{}, errs.Wrap(err, "update analysis notes")
	}
	return s.GetAnalysisByID(ctx, input.AnalysisID)
}

// ApproveAnalysis records the approver and timestamp. The approver must
// differ from the creator and from the identity that last changed the counts.
func (s *Service) ApproveAnalysis(ctx context.Context, analysisID uint64, approver string) (ports.Analysis, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Analysis{}, err
	}
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return ports.Analysis{}, reject.Invalid("approved_by", "is required", reject.ErrApproverRequired)
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.rejectrate.approve"),
		slog.Uint64("analysis_id", analysisID),
		slog.String("actor", approver),
	)

	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repos.Analyses.GetAnalysis(txCtx, analysisID)
		if err != nil {
			return errs.Wrap(err, "load analysis")
		}
		if current.Approved() {
			return reject.Invalid("approved_by", "analysis already approved", reject.ErrAlreadyApproved)
		}
		if strings.EqualFold(current.CreatedBy, approver) || strings.EqualFold(current.UpdatedBy, approver) {
			return reject.Invalid("approved_by", "must differ from the author of the figures", reject.ErrSelfApproval)
		}
		if err := s.repos.Analyses.ApproveAnalysis(txCtx, analysisID, approver, s.timestamp()); err != nil {
			if errors.Is(err, reject.ErrAlreadyApproved) {
				return reject.Invalid("approved_by", "analysis already approved", err)
			}
			return errs.Wrap(err, "approve analysis")
		}
		return nil
	})
	if err != nil {
		logging.Warn(ctx, "analysis approval rejected", slog.Any("err", errs.Loggable(err)))
		return ports.Analysis{}, err
	}

	logging.Info(ctx, "analysis approved")
	return s.GetAnalysisByID(ctx, analysisID)
}

func (s *Service) GetAnalysisByID(ctx context.Context, analysisID uint64) (ports.Analysis, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Analysis{}, err
	}
	analysis, err := s.repos.Analyses.GetAnalysis(ctx, analysisID)
	if err != nil {
		return ports.Analysis{}, errs.Wrap(err, "get analysis")
	}
	return analysis, nil
}

func (s *Service) GetAnalysis(ctx context.Context, month reject.Month, modality string) (ports.Analysis, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Analysis{}, err
	}
	normalized, err := requireModality(modality)
	if err != nil {
		return ports.Analysis{}, err
	}
	analysis, err := s.repos.Analyses.GetAnalysisByPeriod(ctx, month, normalized)
	if err != nil {
		return ports.Analysis{}, errs.Wrap(err, "get analysis")
	}
	return analysis, nil
}

func (s *Service) ListRuns(ctx context.Context, filter ports.AnalysisRunFilter) ([]ports.AnalysisRun, error) {
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
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	runs, err := s.repos.Runs.ListAnalysisRuns(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list analysis runs")
	}
	return runs, nil
}
