package model

// Examination mirrors the registration record owned by the RIS. The engine
// only counts rows by month and modality.
type Examination struct {
	ExaminationID uint64 `gorm:"column:examination_id;primaryKey;autoIncrement"`
	AccessionNo   string `gorm:"column:accession_no;type:text;not null;uniqueIndex"`
	Modality      string `gorm:"column:modality;type:text;not null;index:idx_examinations_modality_created,priority:1"`
	CreatedAt     string `gorm:"column:created_at;type:text;not null;index:idx_examinations_modality_created,priority:2"`
}

func (Examination) TableName() string {
	return "examinations"
}
