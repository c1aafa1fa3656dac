package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/ports"
)

type AnalysisRepository struct {
	db *gorm.DB
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// approvalKept keeps a column only when the attested figures are unchanged;
// otherwise it takes the second argument.
const approvalKept = `CASE WHEN reject_analyses.total_examinations = excluded.total_examinations
	AND reject_analyses.total_images = excluded.total_images
	AND reject_analyses.total_retakes = excluded.total_retakes
	AND reject_analyses.target_rate = excluded.target_rate
	THEN reject_analyses.%s ELSE %s END`

func (r *AnalysisRepository) UpsertAnalysis(ctx context.Context, input ports.AnalysisUpsert) (ports.Analysis, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Analysis{}, err
	}

	row := model.RejectAnalysis{
		AnalysisMonth:     input.Month.DateString(),
		Modality:          input.Modality,
		TotalExaminations: input.Counts.Examinations,
		TotalImages:       input.Counts.Images,
		TotalRetakes:      input.Counts.Retakes,
		RejectRate:        input.Derived.RejectRate,
		TargetRate:        input.Derived.TargetRate,
		Compliance:        input.Derived.Compliance,
		CalculationMethod: string(input.Method),
		CreatedBy:         input.Actor,
		UpdatedBy:         input.Actor,
		CreatedAt:         input.At,
		UpdatedAt:         input.At,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "analysis_month"}, {Name: "modality"}},
		DoUpdates: clause.Assignments(map[string]any{
			"approved_by":        gorm.Expr(fmt.Sprintf(approvalKept, "approved_by", "NULL")),
			"approval_date":      gorm.Expr(fmt.Sprintf(approvalKept, "approval_date", "NULL")),
			"updated_by":         gorm.Expr(fmt.Sprintf(approvalKept, "updated_by", "excluded.updated_by")),
			"total_examinations": gorm.Expr("excluded.total_examinations"),
			"total_images":       gorm.Expr("excluded.total_images"),
			"total_retakes":      gorm.Expr("excluded.total_retakes"),
			"reject_rate":        gorm.Expr("excluded.reject_rate"),
			"target_rate":        gorm.Expr("excluded.target_rate"),
			"compliance":         gorm.Expr("excluded.compliance"),
			"calculation_method": gorm.Expr("excluded.calculation_method"),
			"updated_at":         gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&row).Error; err != nil {
		return ports.Analysis{}, errs.Wrap(err, "upsert reject analysis")
	}

	return getAnalysisByPeriod(db, input.Month, input.Modality)
}

func (r *AnalysisRepository) GetAnalysis(ctx context.Context, analysisID uint64) (ports.Analysis, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Analysis{}, err
	}

	var row model.RejectAnalysis
	if err := db.Where("analysis_id = ?", analysisID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Analysis{}, errs.Wrapf(ports.ErrAnalysisNotFound, "analysis %d", analysisID)
		}
		return ports.Analysis{}, errs.Wrap(err, "query reject analysis")
	}
	return mapAnalysis(row), nil
}

func (r *AnalysisRepository) GetAnalysisByPeriod(ctx context.Context, month reject.Month, modality string) (ports.Analysis, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Analysis{}, err
	}
	return getAnalysisByPeriod(db, month, modality)
}

// ListAnalyses returns the rows of a modality for the given years ordered by month.
func (r *AnalysisRepository) ListAnalyses(ctx context.Context, modality string, years []int) ([]ports.Analysis, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RejectAnalysis{})
	if modality != "" {
		query = query.Where("modality = ?", modality)
	}
	if len(years) > 0 {
		prefixes := make([]string, 0, len(years))
		for _, year := range years {
			prefixes = append(prefixes, fmt.Sprintf("%04d", year))
		}
		query = query.Where("substr(analysis_month, 1, 4) IN ?", prefixes)
	}

	var rows []model.RejectAnalysis
	if err := query.Order("analysis_month asc").Order("modality asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reject analyses")
	}

	items := make([]ports.Analysis, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAnalysis(row))
	}
	return items, nil
}

func (r *AnalysisRepository) UpdateAnalysisNotes(ctx context.Context, analysisID uint64, correctiveActions string, rootCause string, at string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RejectAnalysis{}).
		Where("analysis_id = ?", analysisID).
		Updates(map[string]any{
			"corrective_actions":  correctiveActions,
			"root_cause_analysis": rootCause,
			"updated_at":          at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update analysis notes")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(ports.ErrAnalysisNotFound, "analysis %d", analysisID)
	}
	return nil
}

// ApproveAnalysis sets the approver only on a row that has none.
func (r *AnalysisRepository) ApproveAnalysis(ctx context.Context, analysisID uint64, approver string, at string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RejectAnalysis{}).
		Where("analysis_id = ? AND approved_by IS NULL", analysisID).
		Updates(map[string]any{
			"approved_by":   approver,
			"approval_date": at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "approve analysis")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&model.RejectAnalysis{}).Where("analysis_id = ?", analysisID).Count(&count).Error; err != nil {
		return errs.Wrap(err, "check analysis exists")
	}
	if count == 0 {
		return errs.Wrapf(ports.ErrAnalysisNotFound, "analysis %d", analysisID)
	}
	return reject.ErrAlreadyApproved
}

func getAnalysisByPeriod(db *gorm.DB, month reject.Month, modality string) (ports.Analysis, error) {
	var row model.RejectAnalysis
	if err := db.Where("analysis_month = ? AND modality = ?", month.DateString(), modality).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Analysis{}, errs.Wrapf(ports.ErrAnalysisNotFound, "analysis %s %s", month, modality)
		}
		return ports.Analysis{}, errs.Wrap(err, "query reject analysis by period")
	}
	return mapAnalysis(row), nil
}

func mapAnalysis(row model.RejectAnalysis) ports.Analysis {
	month, _ := reject.ParseMonth(row.AnalysisMonth)
	return ports.Analysis{
		AnalysisID:        row.AnalysisID,
		Month:             month,
		Modality:          row.Modality,
		TotalExaminations: row.TotalExaminations,
		TotalImages:       row.TotalImages,
		TotalRetakes:      row.TotalRetakes,
		RejectRate:        reject.Round2(row.RejectRate),
		TargetRate:        reject.Round2(row.TargetRate),
		Compliance:        row.Compliance,
		Method:            reject.CalculationMethod(row.CalculationMethod),
		CorrectiveActions: row.CorrectiveActions,
		RootCause:         row.RootCause,
		CreatedBy:         row.CreatedBy,
		UpdatedBy:         row.UpdatedBy,
		ApprovedBy:        nonEmpty(row.ApprovedBy),
		ApprovalDate:      nonEmpty(row.ApprovalDate),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func nonEmpty(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return value
}
