package model

type RejectCategory struct {
	CategoryID   uint64 `gorm:"column:category_id;primaryKey;autoIncrement"`
	Name         string `gorm:"column:name;type:text;not null;uniqueIndex:idx_reject_categories_name_type,priority:1"`
	CategoryType string `gorm:"column:category_type;type:text;not null;uniqueIndex:idx_reject_categories_name_type,priority:2"`
	Description  string `gorm:"column:description;type:text;not null;default:''"`
	IsActive     bool   `gorm:"column:is_active;not null"`
	DisplayOrder int    `gorm:"column:display_order;not null;default:0"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt    string `gorm:"column:updated_at;type:text;not null"`
}

func (RejectCategory) TableName() string {
	return "reject_categories"
}

type RejectReason struct {
	ReasonID       uint64 `gorm:"column:reason_id;primaryKey;autoIncrement"`
	CategoryID     uint64 `gorm:"column:category_id;not null;uniqueIndex:idx_reject_reasons_category_text,priority:1"`
	ReasonText     string `gorm:"column:reason_text;type:text;not null;uniqueIndex:idx_reject_reasons_category_text,priority:2"`
	ComplianceCode string `gorm:"column:compliance_code;type:text;not null;default:''"`
	Severity       string `gorm:"column:severity;type:text;not null"`
	IsActive       bool   `gorm:"column:is_active;not null"`
	DisplayOrder   int    `gorm:"column:display_order;not null;default:0"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (RejectReason) TableName() string {
	return "reject_reasons"
}
