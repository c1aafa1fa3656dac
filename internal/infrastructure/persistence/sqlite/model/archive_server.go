package model

type ArchiveServer struct {
	ArchiveServerID         uint64  `gorm:"column:archive_server_id;primaryKey;autoIncrement"`
	Name                    string  `gorm:"column:name;type:text;not null;uniqueIndex"`
	BaseURL                 string  `gorm:"column:base_url;type:text;not null"`
	Username                string  `gorm:"column:username;type:text;not null;default:''"`
	Password                string  `gorm:"column:password;type:text;not null;default:''"`
	IsActive                bool    `gorm:"column:is_active;not null"`
	IncludeInRejectAnalysis bool    `gorm:"column:include_in_reject_analysis;not null"`
	IsPrimary               bool    `gorm:"column:is_primary;not null"`
	TimeoutSeconds          int     `gorm:"column:timeout_seconds;not null;default:0"`
	CreatedAt               string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt               string  `gorm:"column:updated_at;type:text;not null"`
	LastCheckedAt           *string `gorm:"column:last_checked_at;type:text"`
}

func (ArchiveServer) TableName() string {
	return "archive_servers"
}
