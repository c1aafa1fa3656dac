package rejectrate

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type ComputeInput struct {
	Month    reject.Month
	Modality string
	AutoSave bool
	Actor    string
	Refresh  bool
}

type ComputeResult struct {
	RunID             string
	Month             reject.Month
	Modality          string
	TotalExaminations int64
	TotalImages       int64
	TotalRetakes      int64
	RISExaminations   int64
	PACSStudies       int64
	Method            reject.CalculationMethod
	PACSWarnings      []string
	Breakdown         map[string]reject.ModalityCount
	Derived           reject.Derived
	// Analysis is set only when AutoSave persisted the result.
	Analysis *ports.Analysis
}

// ComputeAnalysis reconciles internal examinations with archive counts for
// one (month, modality). Archive failures degrade to warnings; only a missing
// eligible server set aborts the computation.
func (s *Service) ComputeAnalysis(ctx context.Context, input ComputeInput) (ComputeResult, error) {
	if err := checkContext(ctx); err != nil {
		return ComputeResult{}, err
	}
	modality, err := requireModality(input.Modality)
	if err != nil {
		return ComputeResult{}, err
	}
	actor, err := requireActor(input.Actor)
	if err != nil {
		return ComputeResult{}, err
	}

	runID := s.newRunID()
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.rejectrate.compute"),
		slog.String("run_id", runID),
		slog.String("month", input.Month.String()),
		slog.String("modality", modality),
		slog.String("actor", actor),
	)
	ctx, cancel := s.withComputationDeadline(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "rejectrate.compute", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("month", input.Month.String()),
		attribute.String("modality", modality),
	))
	defer span.End()

	result := ComputeResult{
		RunID:     runID,
		Month:     input.Month,
		Modality:  modality,
		Breakdown: make(map[string]reject.ModalityCount),
	}

	agg, err := s.aggregate(ctx, input.Month, modality, "", input.Refresh)
	if err != nil {
		if errors.Is(err, reject.ErrNoEligibleServers) {
			result.PACSWarnings = []string{agg.Counts.Error}
		}
		return result, errs.Wrap(err, "aggregate archive counts")
	}

	risCount, err := s.repos.Examinations.CountExaminations(ctx, input.Month, modality)
	if err != nil {
		return result, errs.Wrap(err, "count examinations")
	}
	ledger, err := s.repos.Incidents.SumIncidentRetakes(ctx, input.Month, modality)
	if err != nil {
		return result, errs.Wrap(err, "sum incident retakes")
	}

	archiveCounts := agg.Counts.ForModality(modality)
	recon := reject.Reconcile(risCount, archiveCounts.Studies, archiveCounts.Images)
	if agg.Succeeded == 0 {
		recon = recon.WithoutArchiveData()
	}
	recon = recon.ApplyIncidentLedger(ledger.Incidents, ledger.Retakes)

	targetRate, err := s.targetRateFor(ctx, input.Month, modality)
	if err != nil {
		return result, err
	}

	result.TotalExaminations = recon.TotalExaminations
	result.TotalImages = recon.TotalImages
	result.TotalRetakes = recon.TotalRetakes
	result.RISExaminations = recon.RISExaminations
	result.PACSStudies = recon.PACSStudies
	result.Method = recon.Method
	result.PACSWarnings = agg.Counts.Warnings
	if bucket, ok := agg.Counts.ModalityBreakdown[modality]; ok {
		result.Breakdown[modality] = bucket
	}
	result.Derived = reject.ComputeDerivedFields(recon.Counts(), targetRate)

	run := ports.AnalysisRun{
		RunID:             runID,
		Month:             input.Month,
		Modality:          modality,
		Actor:             actor,
		Method:            recon.Method,
		RISExaminations:   recon.RISExaminations,
		PACSStudies:       recon.PACSStudies,
		TotalExaminations: recon.TotalExaminations,
		TotalImages:       recon.TotalImages,
		TotalRetakes:      recon.TotalRetakes,
		Breakdown:         result.Breakdown,
		Warnings:          result.PACSWarnings,
		CreatedAt:         s.timestamp(),
	}

	if !input.AutoSave {
		if err := s.repos.Runs.CreateAnalysisRun(ctx, run); err != nil {
			return result, errs.Wrap(err, "record analysis run")
		}
		logging.Info(ctx, "analysis computed",
			slog.String("method", string(recon.Method)),
			slog.Float64("reject_rate", result.Derived.RejectRate),
			slog.Int("warnings", len(result.PACSWarnings)),
		)
		return result, nil
	}

	saved, err := s.saveComputed(ctx, run, result.Derived)
	if err != nil {
		logging.Error(ctx, "save computed analysis failed", slog.Any("err", errs.Loggable(err)))
		return result, err
	}
	result.Analysis = &saved
	logging.Info(ctx, "analysis computed and saved",
		slog.Uint64("analysis_id", saved.AnalysisID),
		slog.String("method", string(recon.Method)),
		slog.Float64("reject_rate", saved.RejectRate),
		slog.Int("warnings", len(result.PACSWarnings)),
	)
	return result, nil
}

// saveComputed upserts the analysis, claims the period's unassigned incidents
// and records the run in a single transaction.
func (s *Service) saveComputed(ctx context.Context, run ports.AnalysisRun, derived reject.Derived) (ports.Analysis, error) {
	var saved ports.Analysis
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		analysis, err := s.repos.Analyses.UpsertAnalysis(txCtx, ports.AnalysisUpsert{
			Month:    run.Month,
			Modality: run.Modality,
			Counts: reject.Counts{
				Examinations: run.TotalExaminations,
				Images:       run.TotalImages,
				Retakes:      run.TotalRetakes,
			},
			Derived: derived,
			Method:  run.Method,
			Actor:   run.Actor,
			At:      run.CreatedAt,
		})
		if err != nil {
			return errs.Wrap(err, "upsert analysis")
		}

		attached, err := s.repos.Incidents.AttachUnassignedIncidents(txCtx, run.Month, run.Modality, analysis.AnalysisID)
		if err != nil {
			return errs.Wrap(err, "attach incidents")
		}
		if attached > 0 {
			logging.Info(txCtx, "incidents attached to analysis",
				slog.Uint64("analysis_id", analysis.AnalysisID),
				slog.Int64("incidents", attached),
			)
		}

		run.Saved = true
		analysisID := analysis.AnalysisID
		run.AnalysisID = &analysisID
		if err := s.repos.Runs.CreateAnalysisRun(txCtx, run); err != nil {
			return errs.Wrap(err, "record analysis run")
		}
		saved = analysis
		return nil
	})
	if err != nil {
		return ports.Analysis{}, err
	}
	return saved, nil
}

// targetRateFor keeps a period's stored target so recomputation does not
// silently reset a manager's override.
func (s *Service) targetRateFor(ctx context.Context, month reject.Month, modality string) (float64, error) {
	existing, err := s.repos.Analyses.GetAnalysisByPeriod(ctx, month, modality)
	if err != nil {
		if errors.Is(err, ports.ErrAnalysisNotFound) {
			return s.opts.TargetRate, nil
		}
		return 0, errs.Wrap(err, "load existing analysis")
	}
	return existing.TargetRate, nil
}
