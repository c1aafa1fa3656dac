package repository

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/ports"
)

type AnalysisRunRepository struct {
	db *gorm.DB
}

var _ ports.AnalysisRunRepository = (*AnalysisRunRepository)(nil)

func NewAnalysisRunRepository(db *gorm.DB) *AnalysisRunRepository {
	return &AnalysisRunRepository{db: db}
}

func (r *AnalysisRunRepository) CreateAnalysisRun(ctx context.Context, run ports.AnalysisRun) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return errs.Wrap(err, "marshal run warnings")
	}
	breakdown := run.Breakdown
	if breakdown == nil {
		breakdown = map[string]reject.ModalityCount{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return errs.Wrap(err, "marshal run breakdown")
	}

	row := model.AnalysisRun{
		RunID:             run.RunID,
		AnalysisMonth:     run.Month.DateString(),
		Modality:          run.Modality,
		Actor:             run.Actor,
		CalculationMethod: string(run.Method),
		RISExaminations:   run.RISExaminations,
		PACSStudies:       run.PACSStudies,
		TotalExaminations: run.TotalExaminations,
		TotalImages:       run.TotalImages,
		TotalRetakes:      run.TotalRetakes,
		ModalityBreakdown: datatypes.JSON(breakdownJSON),
		Warnings:          datatypes.JSON(warningsJSON),
		Saved:             run.Saved,
		AnalysisID:        run.AnalysisID,
		CreatedAt:         run.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "create analysis run")
	}
	return nil
}

func (r *AnalysisRunRepository) ListAnalysisRuns(ctx context.Context, filter ports.AnalysisRunFilter) ([]ports.AnalysisRun, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.AnalysisRun{})
	if filter.Month != nil {
		query = query.Where("analysis_month = ?", filter.Month.DateString())
	}
	if filter.Modality != "" {
		query = query.Where("modality = ?", filter.Modality)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.AnalysisRun
	if err := query.Order("created_at desc").Order("run_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query analysis runs")
	}

	items := make([]ports.AnalysisRun, 0, len(rows))
	for _, row := range rows {
		item, err := mapAnalysisRun(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func mapAnalysisRun(row model.AnalysisRun) (ports.AnalysisRun, error) {
	month, err := reject.ParseMonth(row.AnalysisMonth)
	if err != nil {
		return ports.AnalysisRun{}, errs.Wrapf(err, "run %s", row.RunID)
	}

	var warnings []string
	if len(row.Warnings) > 0 {
		if err := json.Unmarshal(row.Warnings, &warnings); err != nil {
			return ports.AnalysisRun{}, errs.Wrapf(err, "decode warnings of run %s", row.RunID)
		}
	}
	breakdown := map[string]reject.ModalityCount{}
	if len(row.ModalityBreakdown) > 0 {
		if err := json.Unmarshal(row.ModalityBreakdown, &breakdown); err != nil {
			return ports.AnalysisRun{}, errs.Wrapf(err, "decode breakdown of run %s", row.RunID)
		}
	}

	return ports.AnalysisRun{
		RunID:             row.RunID,
		Month:             month,
		Modality:          row.Modality,
		Actor:             row.Actor,
		Method:            reject.CalculationMethod(row.CalculationMethod),
		RISExaminations:   row.RISExaminations,
		PACSStudies:       row.PACSStudies,
		TotalExaminations: row.TotalExaminations,
		TotalImages:       row.TotalImages,
		TotalRetakes:      row.TotalRetakes,
		Breakdown:         breakdown,
		Warnings:          warnings,
		Saved:             row.Saved,
		AnalysisID:        row.AnalysisID,
		CreatedAt:         row.CreatedAt,
	}, nil
}
