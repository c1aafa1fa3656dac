package model

import "gorm.io/datatypes"

// AnalysisRun records one computation, saved or not.
type AnalysisRun struct {
	RunID             string         `gorm:"column:run_id;type:text;primaryKey"`
	AnalysisMonth     string         `gorm:"column:analysis_month;type:text;not null;index:idx_analysis_runs_period,priority:1"`
	Modality          string         `gorm:"column:modality;type:text;not null;index:idx_analysis_runs_period,priority:2"`
	Actor             string         `gorm:"column:actor;type:text;not null"`
	CalculationMethod string         `gorm:"column:calculation_method;type:text;not null"`
	RISExaminations   int64          `gorm:"column:ris_examinations;not null"`
	PACSStudies       int64          `gorm:"column:pacs_studies;not null"`
	TotalExaminations int64          `gorm:"column:total_examinations;not null"`
	TotalImages       int64          `gorm:"column:total_images;not null"`
	TotalRetakes      int64          `gorm:"column:total_retakes;not null"`
	ModalityBreakdown datatypes.JSON `gorm:"column:modality_breakdown"`
	Warnings          datatypes.JSON `gorm:"column:warnings"`
	Saved             bool           `gorm:"column:saved;not null"`
	AnalysisID        *uint64        `gorm:"column:analysis_id"`
	CreatedAt         string         `gorm:"column:created_at;type:text;not null;index"`
}

func (AnalysisRun) TableName() string {
	return "analysis_runs"
}
