package rejectrate

import (
	"context"
	"log/slog"
	"strings"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type CategoryInput struct {
	Name         string `validate:"required,max=100"`
	Type         string `validate:"required"`
	Description  string `validate:"max=500"`
	Active       *bool
	DisplayOrder int `validate:"gte=0"`
}

func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (ports.Category, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Category{}, err
	}
	category, err := s.categoryFromInput(input)
	if err != nil {
		return ports.Category{}, err
	}
	if input.Active == nil {
		category.Active = true
	}

	var created ports.Category
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		taken, err := s.repos.Categories.CategoryNameTaken(txCtx, category.Name, category.Type, 0)
		if err != nil {
			return err
		}
		if taken {
			return reject.Invalid("name", "already exists for "+string(category.Type), reject.ErrDuplicateCategory)
		}
		created, err = s.repos.Categories.CreateCategory(txCtx, category)
		return err
	})
	if err != nil {
		return ports.Category{}, err
	}

	logging.Info(ctx, "reject category created",
		slog.String("component", "usecase.rejectrate.catalog"),
		slog.Uint64("category_id", created.CategoryID),
		slog.String("name", created.Name),
	)
	return created, nil
}

// UpdateCategory replaces every editable field. A nil Active keeps the current flag.
func (s *Service) UpdateCategory(ctx context.Context, categoryID uint64, input CategoryInput) (ports.Category, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Category{}, err
	}
	category, err := s.categoryFromInput(input)
	if err != nil {
		return ports.Category{}, err
	}
	category.CategoryID = categoryID

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repos.Categories.GetCategory(txCtx, categoryID)
		if err != nil {
			return err
		}
		if input.Active == nil {
			category.Active = current.Active
		}
		taken, err := s.repos.Categories.CategoryNameTaken(txCtx, category.Name, category.Type, categoryID)
		if err != nil {
			return err
		}
		if taken {
			return reject.Invalid("name", "already exists for "+string(category.Type), reject.ErrDuplicateCategory)
		}
		return s.repos.Categories.UpdateCategory(txCtx, category)
	})
	if err != nil {
		return ports.Category{}, err
	}
	return s.repos.Categories.GetCategory(ctx, categoryID)
}

// DeleteCategory refuses while any reason, active or not, still references the category.
func (s *Service) DeleteCategory(ctx context.Context, categoryID uint64) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repos.Categories.GetCategory(txCtx, categoryID); err != nil {
			return err
		}
		reasons, err := s.repos.Categories.CountReasons(txCtx, categoryID)
		if err != nil {
			return err
		}
		if reasons > 0 {
			return reject.Invalid("category_id", "category still has reasons; deactivate it instead", reject.ErrCategoryInUse)
		}
		return s.repos.Categories.DeleteCategory(txCtx, categoryID)
	})
}

func (s *Service) ListCategories(ctx context.Context, includeInactive bool) ([]ports.Category, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.repos.Categories.ListCategories(ctx, includeInactive)
}

func (s *Service) categoryFromInput(input CategoryInput) (ports.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validateStruct(input); err != nil {
		return ports.Category{}, err
	}
	categoryType, err := reject.ParseCategoryType(input.Type)
	if err != nil {
		return ports.Category{}, reject.Invalid("category_type", err.Error(), err)
	}
	category := ports.Category{
		Name:         input.Name,
		Type:         categoryType,
		Description:  strings.TrimSpace(input.Description),
		DisplayOrder: input.DisplayOrder,
	}
	if input.Active != nil {
		category.Active = *input.Active
	}
	return category, nil
}

type ReasonInput struct {
	CategoryID     uint64 `validate:"required"`
	Text           string `validate:"required,max=200"`
	ComplianceCode string `validate:"max=50"`
	Severity       string
	DisplayOrder   int `validate:"gte=0"`
}

func (s *Service) CreateReason(ctx context.Context, input ReasonInput) (ports.Reason, error) {
	if err := checkContext(ctx); err != nil {
		return ports.Reason{}, err
	}
	input.Text = strings.TrimSpace(input.Text)
	if err := s.validateStruct(input); err != nil {
		return ports.Reason{}, err
	}
	severity, err := reject.ParseSeverity(input.Severity)
	if err != nil {
		return ports.Reason{}, reject.Invalid("severity", err.Error(), err)
	}

	var created ports.Reason
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repos.Categories.GetCategory(txCtx, input.CategoryID); err != nil {
			return err
		}
		taken, err := s.repos.Categories.ReasonTextTaken(txCtx, input.CategoryID, input.Text)
		if err != nil {
			return err
		}
		if taken {
			return reject.Invalid("reason_text", "already exists in category", reject.ErrDuplicateReason)
		}
		created, err = s.repos.Categories.CreateReason(txCtx, ports.Reason{
			CategoryID:     input.CategoryID,
			Text:           input.Text,
			ComplianceCode: strings.TrimSpace(input.ComplianceCode),
			Severity:       severity,
			Active:         true,
			DisplayOrder:   input.DisplayOrder,
		})
		return err
	})
	if err != nil {
		return ports.Reason{}, err
	}
	return created, nil
}

// SetReasonActive deactivates or reactivates a reason. Recorded incidents keep
// referencing it either way.
func (s *Service) SetReasonActive(ctx context.Context, reasonID uint64, active bool) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := s.repos.Categories.SetReasonActive(ctx, reasonID, active); err != nil {
		return errs.Wrap(err, "set reason active")
	}
	return nil
}

func (s *Service) ListReasons(ctx context.Context, categoryID uint64, includeInactive bool) ([]ports.Reason, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.repos.Categories.ListReasons(ctx, categoryID, includeInactive)
}
