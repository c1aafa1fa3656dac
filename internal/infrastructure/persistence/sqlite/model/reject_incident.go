package model

type RejectIncident struct {
	IncidentID         uint64  `gorm:"column:incident_id;primaryKey;autoIncrement"`
	ExaminationID      uint64  `gorm:"column:examination_id;not null;index"`
	AnalysisID         *uint64 `gorm:"column:analysis_id;index"`
	ReasonID           uint64  `gorm:"column:reason_id;not null;index"`
	Modality           string  `gorm:"column:modality;type:text;not null;index:idx_reject_incidents_period,priority:2"`
	RetakeCount        int     `gorm:"column:retake_count;not null;check:retake_count >= 1"`
	OriginalTechnique  string  `gorm:"column:original_technique;type:text;not null;default:''"`
	CorrectedTechnique string  `gorm:"column:corrected_technique;type:text;not null;default:''"`
	PatientFactors     string  `gorm:"column:patient_factors;type:text;not null;default:''"`
	EquipmentFactors   string  `gorm:"column:equipment_factors;type:text;not null;default:''"`
	ImmediateAction    string  `gorm:"column:immediate_action;type:text;not null;default:''"`
	FollowUpRequired   bool    `gorm:"column:follow_up_required;not null"`
	Technologist       string  `gorm:"column:technologist;type:text;not null"`
	ReportedBy         string  `gorm:"column:reported_by;type:text;not null"`
	OccurredAt         string  `gorm:"column:occurred_at;type:text;not null;index:idx_reject_incidents_period,priority:1"`
	Notes              string  `gorm:"column:notes;type:text;not null;default:''"`
	CreatedAt          string  `gorm:"column:created_at;type:text;not null"`
}

func (RejectIncident) TableName() string {
	return "reject_incidents"
}
