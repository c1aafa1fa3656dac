package rejectrate

import (
	"context"
	"strings"
	"time"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type ExaminationInput struct {
	AccessionNo string `validate:"required,max=64"`
	Modality    string `validate:"required,max=10"`
	// PerformedAt defaults to now.
	PerformedAt time.Time
}

// RegisterExamination imports one examination from the registration system so
// incidents can reference it and the period count includes it.
func (s *Service) RegisterExamination(ctx context.Context, input ExaminationInput) (ports.Examination, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Examination{}, err
	}
	input.AccessionNo = strings.TrimSpace(input.AccessionNo)
	if err := s.validateStruct(input); err != nil {
		return ports.Examination{}, err
	}
	modality, err := requireModality(input.Modality)
	if err != nil {
		return ports.Examination{}, err
	}
	performedAt := input.PerformedAt
	if performedAt.IsZero() {
		performedAt = s.now()
	}

	exam, err := s.repos.Examinations.CreateExamination(ctx, ports.Examination{
		AccessionNo: input.AccessionNo,
		Modality:    modality,
		CreatedAt:   performedAt,
	})
	if err != nil {
		return ports.Examination{}, errs.Wrap(err, "register examination")
	}
	return exam, nil
}

// ExaminationCount reports the internal examination count of a period; it is
// the RIS side of the reconciliation.
func (s *Service) ExaminationCount(ctx context.Context, month reject.Month, modality string) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	normalized, err := requireModality(modality)
	if err != nil {
		return 0, err
	}
	count, err := s.repos.Examinations.CountExaminations(ctx, month, normalized)
	if err != nil {
		return 0, errs.Wrap(err, "count examinations")
	}
	return count, nil
}
