package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/ports"
)

type ExaminationRepository struct {
	db *gorm.DB
}

var _ ports.ExaminationRepository = (*ExaminationRepository)(nil)

func NewExaminationRepository(db *gorm.DB) *ExaminationRepository {
	return &ExaminationRepository{db: db}
}

// CountExaminations counts records created inside the month. An empty
// modality counts every modality.
func (r *ExaminationRepository) CountExaminations(ctx context.Context, month reject.Month, modality string) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	query := db.Model(&model.Examination{}).
		Where("created_at >= ? AND created_at < ?", formatTimestamp(month.First()), formatTimestamp(month.End()))
	if modality != "" {
		query = query.Where("modality = ?", modality)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count examinations")
	}
	return count, nil
}

func (r *ExaminationRepository) GetExamination(ctx context.Context, examinationID uint64) (ports.Examination, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Examination{}, err
	}

	var row model.Examination
	if err := db.Where("examination_id = ?", examinationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Examination{}, errs.Wrapf(ports.ErrExaminationNotFound, "examination %d", examinationID)
		}
		return ports.Examination{}, errs.Wrap(err, "query examination")
	}
	return ports.Examination{
		ExaminationID: row.ExaminationID,
		AccessionNo:   row.AccessionNo,
		Modality:      row.Modality,
		CreatedAt:     parseTimestamp(row.CreatedAt),
	}, nil
}

// CreateExamination exists for imports and tests; registration itself is owned elsewhere.
func (r *ExaminationRepository) CreateExamination(ctx context.Context, exam ports.Examination) (ports.Examination, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Examination{}, err
	}

	row := model.Examination{
		AccessionNo: exam.AccessionNo,
		Modality:    exam.Modality,
		CreatedAt:   formatTimestamp(exam.CreatedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Examination{}, errs.Wrap(err, "create examination")
	}

	exam.ExaminationID = row.ExaminationID
	exam.CreatedAt = parseTimestamp(row.CreatedAt)
	return exam, nil
}
