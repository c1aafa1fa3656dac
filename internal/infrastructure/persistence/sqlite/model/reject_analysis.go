package model

// RejectAnalysis holds one month of one modality. AnalysisMonth is the first
// day of the month as YYYY-MM-01.
type RejectAnalysis struct {
	AnalysisID        uint64  `gorm:"column:analysis_id;primaryKey;autoIncrement"`
	AnalysisMonth     string  `gorm:"column:analysis_month;type:text;not null;uniqueIndex:idx_reject_analyses_period,priority:1"`
	Modality          string  `gorm:"column:modality;type:text;not null;uniqueIndex:idx_reject_analyses_period,priority:2"`
	TotalExaminations int64   `gorm:"column:total_examinations;not null;default:0"`
	TotalImages       int64   `gorm:"column:total_images;not null;default:0"`
	TotalRetakes      int64   `gorm:"column:total_retakes;not null;default:0"`
	RejectRate        float64 `gorm:"column:reject_rate;type:decimal(6,2);not null;default:0"`
	TargetRate        float64 `gorm:"column:target_rate;type:decimal(6,2);not null"`
	Compliance        bool    `gorm:"column:compliance;not null"`
	CalculationMethod string  `gorm:"column:calculation_method;type:text;not null"`
	CorrectiveActions string  `gorm:"column:corrective_actions;type:text;not null;default:''"`
	RootCause         string  `gorm:"column:root_cause_analysis;type:text;not null;default:''"`
	CreatedBy         string  `gorm:"column:created_by;type:text;not null"`
	// UpdatedBy is the last actor whose write changed the counts or target.
	UpdatedBy         string  `gorm:"column:updated_by;type:text;not null;default:''"`
	ApprovedBy        *string `gorm:"column:approved_by;type:text"`
	ApprovalDate      *string `gorm:"column:approval_date;type:text"`
	CreatedAt         string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt         string  `gorm:"column:updated_at;type:text;not null"`
}

func (RejectAnalysis) TableName() string {
	return "reject_analyses"
}
