package ports

import (
	"context"
	"errors"
	"time"

	"radreject/internal/domain/reject"
)

var (
	ErrAnalysisNotFound    = errors.New("reject analysis not found")
	ErrExaminationNotFound = errors.New("examination not found")
)

type Analysis struct {
	AnalysisID        uint64
	Month             reject.Month
	Modality          string
	TotalExaminations int64
	TotalImages       int64
	TotalRetakes      int64
	RejectRate        float64
	TargetRate        float64
	Compliance        bool
	Method            reject.CalculationMethod
	CorrectiveActions string
	RootCause         string
	CreatedBy         string
	// UpdatedBy is the last actor that changed the counts or target.
	UpdatedBy         string
	ApprovedBy        *string
	ApprovalDate      *string
	CreatedAt         string
	UpdatedAt         string
}

func (a Analysis) Status() reject.Status {
	return reject.StatusFor(a.RejectRate, a.TargetRate)
}

func (a Analysis) Approved() bool {
	return a.ApprovedBy != nil && *a.ApprovedBy != ""
}

// AnalysisUpsert carries raw counts plus the derived fields computed for them.
type AnalysisUpsert struct {
	Month    reject.Month
	Modality string
	Counts   reject.Counts
	Derived  reject.Derived
	Method   reject.CalculationMethod
	Actor    string
	At       string
}

type AnalysisRepository interface {
	// UpsertAnalysis inserts or updates the (month, modality) row in one statement.
	// A change of any count or of the target rate clears a previous approval.
	UpsertAnalysis(ctx context.Context, input AnalysisUpsert) (Analysis, error)
	GetAnalysis(ctx context.Context, analysisID uint64) (Analysis, error)
	GetAnalysisByPeriod(ctx context.Context, month reject.Month, modality string) (Analysis, error)
	ListAnalyses(ctx context.Context, modality string, years []int) ([]Analysis, error)
	UpdateAnalysisNotes(ctx context.Context, analysisID uint64, correctiveActions string, rootCause string, at string) error
	ApproveAnalysis(ctx context.Context, analysisID uint64, approver string, at string) error
}

type Examination struct {
	ExaminationID uint64
	AccessionNo   string
	Modality      string
	CreatedAt     time.Time
}

// ExaminationRepository reads the internal system of record.
type ExaminationRepository interface {
	CountExaminations(ctx context.Context, month reject.Month, modality string) (int64, error)
	GetExamination(ctx context.Context, examinationID uint64) (Examination, error)
	CreateExamination(ctx context.Context, exam Examination) (Examination, error)
}

type AnalysisRun struct {
	RunID             string
	Month             reject.Month
	Modality          string
	Actor             string
	Method            reject.CalculationMethod
	RISExaminations   int64
	PACSStudies       int64
	TotalExaminations int64
	TotalImages       int64
	TotalRetakes      int64
	Breakdown         map[string]reject.ModalityCount
	Warnings          []string
	Saved             bool
	AnalysisID        *uint64
	CreatedAt         string
}

type AnalysisRunFilter struct {
	Month    *reject.Month
	Modality string
	Limit    int
}

type AnalysisRunRepository interface {
	CreateAnalysisRun(ctx context.Context, run AnalysisRun) error
	ListAnalysisRuns(ctx context.Context, filter AnalysisRunFilter) ([]AnalysisRun, error)
}
