package rejectrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"radreject/internal/domain/reject"
	"radreject/internal/ports"
)

func TestRecordIncidentValidation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	exams := f.addExaminations(t, "DX", time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC), 1)
	reason := f.addReason(t, "Positioning")

	inactive, err := f.svc.CreateReason(ctx, ReasonInput{CategoryID: reason.CategoryID, Text: "Wrong protocol"})
	if err != nil {
		t.Fatalf("CreateReason() error = %v", err)
	}
	if err := f.svc.SetReasonActive(ctx, inactive.ReasonID, false); err != nil {
		t.Fatalf("SetReasonActive() error = %v", err)
	}

	tests := []struct {
		name  string
		input IncidentInput
		want  error
	}{
		{
			name:  "zero retakes",
			input: IncidentInput{ExaminationID: exams[0].ExaminationID, ReasonID: reason.ReasonID, RetakeCount: 0, Technologist: "rt"},
			want:  reject.ErrValidation,
		},
		{
			name:  "missing technologist",
			input: IncidentInput{ExaminationID: exams[0].ExaminationID, ReasonID: reason.ReasonID, RetakeCount: 1, Technologist: " "},
			want:  reject.ErrValidation,
		},
		{
			name:  "inactive reason",
			input: IncidentInput{ExaminationID: exams[0].ExaminationID, ReasonID: inactive.ReasonID, RetakeCount: 1, Technologist: "rt"},
			want:  reject.ErrInactiveReason,
		},
		{
			name:  "unknown examination",
			input: IncidentInput{ExaminationID: 999, ReasonID: reason.ReasonID, RetakeCount: 1, Technologist: "rt"},
			want:  ports.ErrExaminationNotFound,
		},
		{
			name:  "missing reason id",
			input: IncidentInput{ExaminationID: exams[0].ExaminationID, RetakeCount: 1, Technologist: "rt"},
			want:  reject.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.RecordIncident(ctx, tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("RecordIncident() error = %v, want %v", err, tt.want)
			}
		})
	}

	incidents, err := f.svc.ListIncidents(ctx, ports.IncidentFilter{})
	if err != nil {
		t.Fatalf("ListIncidents() error = %v", err)
	}
	if len(incidents) != 0 {
		t.Fatalf("incidents = %d, want no partial writes", len(incidents))
	}
}

func TestRecordIncidentRejectsInactiveCategory(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	exams := f.addExaminations(t, "CR", time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC), 1)
	reason := f.addReason(t, "Exposure")

	inactive := false
	if _, err := f.svc.UpdateCategory(ctx, reason.CategoryID, CategoryInput{Name: "Exposure", Type: "HUMAN_FAULT", Active: &inactive}); err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}

	_, err := f.svc.RecordIncident(ctx, IncidentInput{ExaminationID: exams[0].ExaminationID, ReasonID: reason.ReasonID, RetakeCount: 1, Technologist: "rt"})
	if !errors.Is(err, reject.ErrInactiveCategory) {
		t.Fatalf("RecordIncident() error = %v, want ErrInactiveCategory", err)
	}
}

func TestRecordIncidentCopiesExaminationModalityAndDefaultsTime(t *testing.T) {
	f := setupFixture(t)
	exams := f.addExaminations(t, "MG", time.Date(2024, time.June, 2, 8, 0, 0, 0, time.UTC), 1)
	reason := f.addReason(t, "Artifact")

	incident, err := f.svc.RecordIncident(context.Background(), IncidentInput{
		ExaminationID:    exams[0].ExaminationID,
		ReasonID:         reason.ReasonID,
		RetakeCount:      2,
		Technologist:     " rt-bo ",
		FollowUpRequired: true,
	})
	if err != nil {
		t.Fatalf("RecordIncident() error = %v", err)
	}
	if incident.Modality != "MG" || incident.Technologist != "rt-bo" {
		t.Fatalf("incident = %#v", incident)
	}
	if !incident.OccurredAt.Equal(fixedNow) {
		t.Fatalf("occurred at = %s, want %s", incident.OccurredAt, fixedNow)
	}
	if incident.State() != reject.IncidentFollowUpRequired {
		t.Fatalf("state = %s", incident.State())
	}

	cleared, err := f.svc.SetFollowUp(context.Background(), incident.IncidentID, false)
	if err != nil {
		t.Fatalf("SetFollowUp() error = %v", err)
	}
	if cleared.State() != reject.IncidentRecorded {
		t.Fatalf("state after clear = %s", cleared.State())
	}
}

func TestAttachIncident(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	month := mustMonth(t, "2024-05")
	exams := f.addExaminations(t, "CR", time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC), 1)
	reason := f.addReason(t, "Positioning")

	may, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{Month: month, Modality: "CR", TotalExaminations: 10, TotalImages: 12, TotalRetakes: 2, Actor: "qm"})
	if err != nil {
		t.Fatalf("SaveManualAnalysis() error = %v", err)
	}
	other, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{Month: month, Modality: "DX", TotalExaminations: 1, TotalImages: 1, Actor: "qm"})
	if err != nil {
		t.Fatalf("SaveManualAnalysis() error = %v", err)
	}

	incident, err := f.svc.RecordIncident(ctx, IncidentInput{
		ExaminationID: exams[0].ExaminationID, ReasonID: reason.ReasonID, RetakeCount: 1, Technologist: "rt",
		OccurredAt: time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordIncident() error = %v", err)
	}
	if incident.AnalysisID != nil {
		t.Fatalf("new incident already assigned")
	}

	attached, err := f.svc.AttachIncident(ctx, incident.IncidentID, AttachTarget{Month: &month, Modality: "cr"})
	if err != nil {
		t.Fatalf("AttachIncident() error = %v", err)
	}
	if attached.AnalysisID == nil || *attached.AnalysisID != may.AnalysisID {
		t.Fatalf("attached analysis = %v, want %d", attached.AnalysisID, may.AnalysisID)
	}

	if _, err := f.svc.AttachIncident(ctx, incident.IncidentID, AttachTarget{AnalysisID: may.AnalysisID}); err != nil {
		t.Fatalf("re-attach to same analysis error = %v", err)
	}
	if _, err := f.svc.AttachIncident(ctx, incident.IncidentID, AttachTarget{AnalysisID: other.AnalysisID}); !errors.Is(err, reject.ErrIncidentAssigned) {
		t.Fatalf("attach to other analysis error = %v, want ErrIncidentAssigned", err)
	}
	if _, err := f.svc.AttachIncident(ctx, incident.IncidentID, AttachTarget{}); !errors.Is(err, reject.ErrValidation) {
		t.Fatalf("attach without target error = %v", err)
	}
}

func TestApproveAnalysisLifecycle(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	month := mustMonth(t, "2024-03")

	saved, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{Month: month, Modality: "CR", TotalExaminations: 90, TotalImages: 100, TotalRetakes: 7, Actor: "qm-lee"})
	if err != nil {
		t.Fatalf("SaveManualAnalysis() error = %v", err)
	}
	if saved.RejectRate != 7 || !saved.Compliance || saved.Method != reject.MethodManual {
		t.Fatalf("saved = %#v", saved)
	}

	if _, err := f.svc.ApproveAnalysis(ctx, saved.AnalysisID, " "); !errors.Is(err, reject.ErrApproverRequired) {
		t.Fatalf("empty approver error = %v", err)
	}
	if _, err := f.svc.ApproveAnalysis(ctx, saved.AnalysisID, "qm-lee"); !errors.Is(err, reject.ErrSelfApproval) {
		t.Fatalf("self approval error = %v", err)
	}

	approved, err := f.svc.ApproveAnalysis(ctx, saved.AnalysisID, "chief-rad")
	if err != nil {
		t.Fatalf("ApproveAnalysis() error = %v", err)
	}
	if !approved.Approved() || *approved.ApprovedBy != "chief-rad" || approved.ApprovalDate == nil {
		t.Fatalf("approved = %#v", approved)
	}
	if approved.TotalRetakes != saved.TotalRetakes || approved.RejectRate != saved.RejectRate {
		t.Fatalf("approval changed counts: %#v", approved)
	}

	if _, err := f.svc.ApproveAnalysis(ctx, saved.AnalysisID, "other-rad"); !errors.Is(err, reject.ErrAlreadyApproved) {
		t.Fatalf("re-approval error = %v", err)
	}
	if _, err := f.svc.ApproveAnalysis(ctx, 9999, "chief-rad"); !errors.Is(err, ports.ErrAnalysisNotFound) {
		t.Fatalf("missing analysis error = %v", err)
	}

	noted, err := f.svc.UpdateAnalysisNotes(ctx, AnalysisNotesInput{AnalysisID: saved.AnalysisID, CorrectiveActions: " retrain ", RootCause: "positioning"})
	if err != nil {
		t.Fatalf("UpdateAnalysisNotes() error = %v", err)
	}
	if noted.CorrectiveActions != "retrain" || noted.RootCause != "positioning" || !noted.Approved() {
		t.Fatalf("noted = %#v", noted)
	}

	changed, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{Month: month, Modality: "CR", TotalExaminations: 90, TotalImages: 100, TotalRetakes: 9, Actor: "qm-lee"})
	if err != nil {
		t.Fatalf("SaveManualAnalysis(changed) error = %v", err)
	}
	if changed.Approved() {
		t.Fatalf("approval survived a count change")
	}
	if changed.Status() != reject.StatusWarning {
		t.Fatalf("status = %s, want WARNING for 9%%", changed.Status())
	}

	rewritten, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{Month: month, Modality: "CR", TotalExaminations: 90, TotalImages: 100, TotalRetakes: 10, Actor: "tech-bob"})
	if err != nil {
		t.Fatalf("SaveManualAnalysis(rewritten) error = %v", err)
	}
	if rewritten.CreatedBy != "qm-lee" || rewritten.UpdatedBy != "tech-bob" {
		t.Fatalf("authors = created %q updated %q", rewritten.CreatedBy, rewritten.UpdatedBy)
	}
	if _, err := f.svc.ApproveAnalysis(ctx, rewritten.AnalysisID, "Tech-Bob"); !errors.Is(err, reject.ErrSelfApproval) {
		t.Fatalf("approval by last writer error = %v, want ErrSelfApproval", err)
	}
	if _, err := f.svc.ApproveAnalysis(ctx, rewritten.AnalysisID, "qm-lee"); !errors.Is(err, reject.ErrSelfApproval) {
		t.Fatalf("approval by creator error = %v, want ErrSelfApproval", err)
	}
	if _, err := f.svc.ApproveAnalysis(ctx, rewritten.AnalysisID, "chief-rad"); err != nil {
		t.Fatalf("ApproveAnalysis(independent) error = %v", err)
	}
}

func TestSaveManualAnalysisValidation(t *testing.T) {
	f := setupFixture(t)
	month := mustMonth(t, "2024-03")
	badTarget := 120.0

	cases := []ManualAnalysisInput{
		{Month: month, Modality: "CR", TotalImages: -1, Actor: "qm"},
		{Month: month, Modality: "CR", TotalImages: 1, TargetRate: &badTarget, Actor: "qm"},
		{Month: month, Modality: "", TotalImages: 1, Actor: "qm"},
		{Month: month, Modality: "CR", TotalImages: 1, Actor: ""},
	}
	for _, input := range cases {
		if _, err := f.svc.SaveManualAnalysis(context.Background(), input); !errors.Is(err, reject.ErrValidation) {
			t.Fatalf("SaveManualAnalysis(%#v) error = %v, want validation error", input, err)
		}
	}
}

func TestCategoryCatalog(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	second, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Equipment fault", Type: "EQUIPMENT", DisplayOrder: 2})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	first, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Positioning", Type: "HUMAN_FAULT", DisplayOrder: 1})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if !first.Active {
		t.Fatalf("new category inactive")
	}

	if _, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "positioning ", Type: "human_fault"}); !errors.Is(err, reject.ErrDuplicateCategory) {
		t.Fatalf("duplicate category error = %v", err)
	}
	if _, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Positioning", Type: "OTHER"}); err != nil {
		t.Fatalf("same name other type error = %v", err)
	}
	if _, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Bad", Type: "NOPE"}); !errors.Is(err, reject.ErrInvalidCategoryType) {
		t.Fatalf("invalid type error = %v", err)
	}

	listed, err := f.svc.ListCategories(ctx, false)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(listed) != 3 || listed[1].CategoryID != first.CategoryID || listed[2].CategoryID != second.CategoryID {
		t.Fatalf("categories order = %#v", listed)
	}

	if _, err := f.svc.CreateReason(ctx, ReasonInput{CategoryID: first.CategoryID, Text: "Rotation", Severity: "high"}); err != nil {
		t.Fatalf("CreateReason() error = %v", err)
	}
	if _, err := f.svc.CreateReason(ctx, ReasonInput{CategoryID: first.CategoryID, Text: "rotation"}); !errors.Is(err, reject.ErrDuplicateReason) {
		t.Fatalf("duplicate reason error = %v", err)
	}
	if _, err := f.svc.CreateReason(ctx, ReasonInput{CategoryID: first.CategoryID, Text: "Clipped", Severity: "urgent"}); !errors.Is(err, reject.ErrInvalidSeverity) {
		t.Fatalf("invalid severity error = %v", err)
	}

	if err := f.svc.DeleteCategory(ctx, first.CategoryID); !errors.Is(err, reject.ErrCategoryInUse) {
		t.Fatalf("delete in-use category error = %v", err)
	}
	if err := f.svc.DeleteCategory(ctx, second.CategoryID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if err := f.svc.DeleteCategory(ctx, second.CategoryID); !errors.Is(err, ports.ErrCategoryNotFound) {
		t.Fatalf("delete missing category error = %v", err)
	}
}

func TestReasonBreakdown(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	exams := f.addExaminations(t, "CR", time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC), 1)
	human := f.addReason(t, "Positioning")

	equipment, err := f.svc.CreateCategory(ctx, CategoryInput{Name: "Detector", Type: "EQUIPMENT"})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	detector, err := f.svc.CreateReason(ctx, ReasonInput{CategoryID: equipment.CategoryID, Text: "Detector artifact", Severity: "CRITICAL"})
	if err != nil {
		t.Fatalf("CreateReason() error = %v", err)
	}

	occurred := time.Date(2024, time.May, 3, 8, 0, 0, 0, time.UTC)
	for _, entry := range []struct {
		reason  uint64
		retakes int
	}{{human.ReasonID, 1}, {human.ReasonID, 1}, {detector.ReasonID, 2}, {human.ReasonID, 4}} {
		if _, err := f.svc.RecordIncident(ctx, IncidentInput{
			ExaminationID: exams[0].ExaminationID, ReasonID: entry.reason, RetakeCount: entry.retakes,
			Technologist: "rt", OccurredAt: occurred,
		}); err != nil {
			t.Fatalf("RecordIncident() error = %v", err)
		}
	}

	got, err := f.svc.ReasonBreakdown(ctx, mustMonth(t, "2024-05"), "CR")
	if err != nil {
		t.Fatalf("ReasonBreakdown() error = %v", err)
	}
	if got.Retakes != 8 || len(got.Reasons) != 2 {
		t.Fatalf("breakdown = %#v", got)
	}
	if got.Reasons[0].ReasonID != human.ReasonID || got.Reasons[0].Retakes != 6 || got.Reasons[0].Incidents != 3 {
		t.Fatalf("top reason = %#v", got.Reasons[0])
	}
	if len(got.ByType) != 2 || got.ByType[0].Type != reject.CategoryHumanFault || got.ByType[0].Share != 75 {
		t.Fatalf("by type = %#v", got.ByType)
	}

	empty, err := f.svc.ReasonBreakdown(ctx, mustMonth(t, "2024-04"), "")
	if err != nil {
		t.Fatalf("ReasonBreakdown(empty) error = %v", err)
	}
	if empty.Retakes != 0 || len(empty.ByType) != 0 {
		t.Fatalf("empty breakdown = %#v", empty)
	}
}

func TestStatisticsTrend(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Rates 10, 10, 10, 7 percent.
	for month, retakes := range map[string]int64{"2024-01": 10, "2024-02": 10, "2024-03": 10, "2024-04": 7} {
		if _, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{
			Month: mustMonth(t, month), Modality: "CR", TotalExaminations: 95, TotalImages: 100, TotalRetakes: retakes, Actor: "qm",
		}); err != nil {
			t.Fatalf("SaveManualAnalysis(%s) error = %v", month, err)
		}
	}
	if _, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{
		Month: mustMonth(t, "2023-12"), Modality: "CR", TotalImages: 100, TotalRetakes: 50, Actor: "qm",
	}); err != nil {
		t.Fatalf("SaveManualAnalysis(2023) error = %v", err)
	}

	stats, err := f.svc.Statistics(ctx, StatisticsInput{Modality: "cr", Years: []int{2024, 2024}})
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if len(stats.Points) != 4 {
		t.Fatalf("points = %d, want 4", len(stats.Points))
	}
	if stats.Points[0].Month.String() != "2024-01" || stats.Points[3].Month.String() != "2024-04" {
		t.Fatalf("points not ordered: %s .. %s", stats.Points[0].Month, stats.Points[3].Month)
	}
	if stats.Points[0].Status != reject.StatusWarning || stats.Points[3].Status != reject.StatusGood {
		t.Fatalf("statuses = %s, %s", stats.Points[0].Status, stats.Points[3].Status)
	}
	if stats.Trend.Direction != reject.TrendImproving || stats.Trend.ChangePercent != -30 {
		t.Fatalf("trend = %#v", stats.Trend)
	}
	if stats.Compliance.NonCompliantMonths != 3 || stats.Compliance.CompliantMonths != 1 {
		t.Fatalf("compliance = %#v", stats.Compliance)
	}
	if stats.Compliance.AverageRejectRate != 9.25 {
		t.Fatalf("average = %v, want 9.25", stats.Compliance.AverageRejectRate)
	}

	multi, err := f.svc.Statistics(ctx, StatisticsInput{Modality: "CR", Years: []int{2024, 2023}})
	if err != nil {
		t.Fatalf("Statistics(multi) error = %v", err)
	}
	if len(multi.Points) != 5 || multi.Years[0] != 2023 {
		t.Fatalf("multi-year = %d points, years %v", len(multi.Points), multi.Years)
	}
}

func TestSchedulerRunOnceSavesPreviousMonth(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addServers(t, eligible("orthanc-1"))
	f.archive.addStudy("orthanc-1", "20240520", "CR", 2)
	f.archive.addStudy("orthanc-1", "20240521", "DX", 1)
	f.addExaminations(t, "CR", time.Date(2024, time.May, 20, 8, 0, 0, 0, time.UTC), 1)

	scheduler, err := NewScheduler(f.svc, ScheduleOptions{Spec: "0 2 1 * *", Modalities: []string{"cr", "DX", "CR"}, Actor: "scheduler"})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	for _, modality := range []string{"CR", "DX"} {
		analysis, err := f.svc.GetAnalysis(ctx, mustMonth(t, "2024-05"), modality)
		if err != nil {
			t.Fatalf("GetAnalysis(%s) error = %v", modality, err)
		}
		if analysis.CreatedBy != "scheduler" {
			t.Fatalf("created by = %q", analysis.CreatedBy)
		}
	}
	runs, err := f.svc.ListRuns(ctx, ports.AnalysisRunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want one per distinct modality", len(runs))
	}
}

func TestNewSchedulerValidation(t *testing.T) {
	f := setupFixture(t)
	if _, err := NewScheduler(f.svc, ScheduleOptions{Spec: "not cron", Modalities: []string{"CR"}, Actor: "s"}); err == nil {
		t.Fatalf("NewScheduler() accepted invalid cron")
	}
	if _, err := NewScheduler(f.svc, ScheduleOptions{Spec: "0 2 1 * *", Actor: "s"}); !errors.Is(err, errModalityRequired) {
		t.Fatalf("NewScheduler() without modalities error = %v", err)
	}
	if _, err := NewScheduler(f.svc, ScheduleOptions{Spec: "0 2 1 * *", Modalities: []string{"CR"}}); !errors.Is(err, errActorRequired) {
		t.Fatalf("NewScheduler() without actor error = %v", err)
	}
}
