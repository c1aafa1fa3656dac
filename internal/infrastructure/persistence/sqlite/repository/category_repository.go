package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	"radreject/internal/ports"
)

type CategoryRepository struct {
	db *gorm.DB
}

var _ ports.CategoryRepository = (*CategoryRepository)(nil)

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, category ports.Category) (ports.Category, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Category{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := model.RejectCategory{
		Name:         category.Name,
		CategoryType: string(category.Type),
		Description:  category.Description,
		IsActive:     category.Active,
		DisplayOrder: category.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Category{}, errs.Wrap(err, "create reject category")
	}
	return mapCategory(row), nil
}

func (r *CategoryRepository) UpdateCategory(ctx context.Context, category ports.Category) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RejectCategory{}).
		Where("category_id = ?", category.CategoryID).
		Updates(map[string]any{
			"name":          category.Name,
			"category_type": string(category.Type),
			"description":   category.Description,
			"is_active":     category.Active,
			"display_order": category.DisplayOrder,
			"updated_at":    time.Now().UTC().Format(time.RFC3339Nano),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update reject category")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(ports.ErrCategoryNotFound, "category %d", category.CategoryID)
	}
	return nil
}

func (r *CategoryRepository) GetCategory(ctx context.Context, categoryID uint64) (ports.Category, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Category{}, err
	}

	var row model.RejectCategory
	if err := db.Where("category_id = ?", categoryID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Category{}, errs.Wrapf(ports.ErrCategoryNotFound, "category %d", categoryID)
		}
		return ports.Category{}, errs.Wrap(err, "query reject category")
	}
	return mapCategory(row), nil
}

func (r *CategoryRepository) DeleteCategory(ctx context.Context, categoryID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Where("category_id = ?", categoryID).Delete(&model.RejectCategory{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete reject category")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(ports.ErrCategoryNotFound, "category %d", categoryID)
	}
	return nil
}

// ListCategories orders by display order, then name.
func (r *CategoryRepository) ListCategories(ctx context.Context, includeInactive bool) ([]ports.Category, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RejectCategory{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var rows []model.RejectCategory
	if err := query.Order("display_order asc").Order("name asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reject categories")
	}

	items := make([]ports.Category, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCategory(row))
	}
	return items, nil
}

func (r *CategoryRepository) CountReasons(ctx context.Context, categoryID uint64) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.RejectReason{}).Where("category_id = ?", categoryID).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count reject reasons")
	}
	return count, nil
}

func (r *CategoryRepository) CategoryNameTaken(ctx context.Context, name string, categoryType reject.CategoryType, excludeID uint64) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	query := db.Model(&model.RejectCategory{}).
		Where("lower(name) = ? AND category_type = ?", strings.ToLower(strings.TrimSpace(name)), string(categoryType))
	if excludeID > 0 {
		query = query.Where("category_id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "check category name")
	}
	return count > 0, nil
}

func (r *CategoryRepository) CreateReason(ctx context.Context, reason ports.Reason) (ports.Reason, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Reason{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := model.RejectReason{
		CategoryID:     reason.CategoryID,
		ReasonText:     reason.Text,
		ComplianceCode: reason.ComplianceCode,
		Severity:       string(reason.Severity),
		IsActive:       reason.Active,
		DisplayOrder:   reason.DisplayOrder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Reason{}, errs.Wrap(err, "create reject reason")
	}
	return mapReason(row), nil
}

func (r *CategoryRepository) GetReason(ctx context.Context, reasonID uint64) (ports.Reason, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Reason{}, err
	}

	var row model.RejectReason
	if err := db.Where("reason_id = ?", reasonID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Reason{}, errs.Wrapf(ports.ErrReasonNotFound, "reason %d", reasonID)
		}
		return ports.Reason{}, errs.Wrap(err, "query reject reason")
	}
	return mapReason(row), nil
}

func (r *CategoryRepository) SetReasonActive(ctx context.Context, reasonID uint64, active bool) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.RejectReason{}).
		Where("reason_id = ?", reasonID).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update reject reason")
	}
	if result.RowsAffected == 0 {
		return errs.Wrapf(ports.ErrReasonNotFound, "reason %d", reasonID)
	}
	return nil
}

// ListReasons lists one category's reasons, or all reasons when categoryID is 0.
func (r *CategoryRepository) ListReasons(ctx context.Context, categoryID uint64, includeInactive bool) ([]ports.Reason, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RejectReason{})
	if categoryID > 0 {
		query = query.Where("category_id = ?", categoryID)
	}
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var rows []model.RejectReason
	if err := query.Order("category_id asc").Order("display_order asc").Order("reason_text asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reject reasons")
	}

	items := make([]ports.Reason, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapReason(row))
	}
	return items, nil
}

func (r *CategoryRepository) ReasonTextTaken(ctx context.Context, categoryID uint64, text string) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.RejectReason{}).
		Where("category_id = ? AND lower(reason_text) = ?", categoryID, strings.ToLower(strings.TrimSpace(text))).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "check reason text")
	}
	return count > 0, nil
}

func mapCategory(row model.RejectCategory) ports.Category {
	return ports.Category{
		CategoryID:   row.CategoryID,
		Name:         row.Name,
		Type:         reject.CategoryType(row.CategoryType),
		Description:  row.Description,
		Active:       row.IsActive,
		DisplayOrder: row.DisplayOrder,
	}
}

func mapReason(row model.RejectReason) ports.Reason {
	return ports.Reason{
		ReasonID:       row.ReasonID,
		CategoryID:     row.CategoryID,
		Text:           row.ReasonText,
		ComplianceCode: row.ComplianceCode,
		Severity:       reject.Severity(row.Severity),
		Active:         row.IsActive,
		DisplayOrder:   row.DisplayOrder,
	}
}
