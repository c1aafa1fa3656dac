package ports

import (
	"context"
	"errors"
	"time"

	"radreject/internal/domain/reject"
)

var (
	ErrCategoryNotFound = errors.New("reject category not found")
	ErrReasonNotFound   = errors.New("reject reason not found")
	ErrIncidentNotFound = errors.New("reject incident not found")
)

type Category struct {
	CategoryID   uint64
	Name         string
	Type         reject.CategoryType
	Description  string
	Active       bool
	DisplayOrder int
}

type Reason struct {
	ReasonID       uint64
	CategoryID     uint64
	Text           string
	ComplianceCode string
	Severity       reject.Severity
	Active         bool
	DisplayOrder   int
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category Category) (Category, error)
	UpdateCategory(ctx context.Context, category Category) error
	GetCategory(ctx context.Context, categoryID uint64) (Category, error)
	DeleteCategory(ctx context.Context, categoryID uint64) error
	ListCategories(ctx context.Context, includeInactive bool) ([]Category, error)
	CountReasons(ctx context.Context, categoryID uint64) (int64, error)
	CategoryNameTaken(ctx context.Context, name string, categoryType reject.CategoryType, excludeID uint64) (bool, error)

	CreateReason(ctx context.Context, reason Reason) (Reason, error)
	GetReason(ctx context.Context, reasonID uint64) (Reason, error)
	SetReasonActive(ctx context.Context, reasonID uint64, active bool) error
	ListReasons(ctx context.Context, categoryID uint64, includeInactive bool) ([]Reason, error)
	ReasonTextTaken(ctx context.Context, categoryID uint64, text string) (bool, error)
}

type Incident struct {
	IncidentID         uint64
	ExaminationID      uint64
	AnalysisID         *uint64
	ReasonID           uint64
	Modality           string
	RetakeCount        int
	OriginalTechnique  string
	CorrectedTechnique string
	PatientFactors     string
	EquipmentFactors   string
	ImmediateAction    string
	FollowUpRequired   bool
	Technologist       string
	ReportedBy         string
	OccurredAt         time.Time
	Notes              string
}

func (i Incident) State() reject.IncidentState {
	return reject.StateOf(i.FollowUpRequired)
}

type IncidentFilter struct {
	Month            *reject.Month
	Modality         string
	AnalysisID       *uint64
	FollowUpRequired *bool
	Unassigned       bool
	Limit            int
}

// LedgerTotals summarizes the incidents of a period.
type LedgerTotals struct {
	Incidents int
	Retakes   int64
}

type ReasonBreakdownRow struct {
	CategoryType reject.CategoryType
	CategoryName string
	ReasonID     uint64
	ReasonText   string
	Severity     reject.Severity
	Incidents    int64
	Retakes      int64
}

type IncidentRepository interface {
	CreateIncident(ctx context.Context, incident Incident) (Incident, error)
	GetIncident(ctx context.Context, incidentID uint64) (Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	SetIncidentAnalysis(ctx context.Context, incidentID uint64, analysisID uint64) error
	SetIncidentFollowUp(ctx context.Context, incidentID uint64, followUp bool) error
	AttachUnassignedIncidents(ctx context.Context, month reject.Month, modality string, analysisID uint64) (int64, error)
	SumIncidentRetakes(ctx context.Context, month reject.Month, modality string) (LedgerTotals, error)
	ReasonBreakdown(ctx context.Context, month reject.Month, modality string) ([]ReasonBreakdownRow, error)
}
