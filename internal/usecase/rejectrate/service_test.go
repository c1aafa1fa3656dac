package rejectrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"radreject/internal/domain/reject"
	"radreject/internal/infrastructure/archive"
	"radreject/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "radreject/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "radreject/internal/infrastructure/persistence/sqlite/uow"
	"radreject/internal/ports"
)

var fixedNow = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

type fakeArchive struct {
	mu      sync.Mutex
	servers map[string]*fakeServer
	calls   map[string]int
}

type fakeServer struct {
	studies map[string]reject.ArchiveStudy
	series  map[string]reject.ArchiveSeries
	order   []string
	err     error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{servers: make(map[string]*fakeServer), calls: make(map[string]int)}
}

func (f *fakeArchive) server(name string) *fakeServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[name]
	if !ok {
		s = &fakeServer{studies: make(map[string]reject.ArchiveStudy), series: make(map[string]reject.ArchiveSeries)}
		f.servers[name] = s
	}
	return s
}

// addStudy registers a study with one series per entry of instances.
func (f *fakeArchive) addStudy(serverName string, studyDate string, modality string, instances ...int) {
	s := f.server(serverName)
	f.mu.Lock()
	defer f.mu.Unlock()

	studyID := fmt.Sprintf("%s-study-%d", serverName, len(s.studies)+1)
	study := reject.ArchiveStudy{ID: studyID, StudyDate: studyDate, StudyInstanceUID: "1.2." + studyID}
	for i, count := range instances {
		seriesID := fmt.Sprintf("%s-series-%d", studyID, i+1)
		ids := make([]string, count)
		for j := range ids {
			ids[j] = fmt.Sprintf("%s-inst-%d", seriesID, j+1)
		}
		s.series[seriesID] = reject.ArchiveSeries{ID: seriesID, Modality: modality, InstanceIDs: ids}
		study.SeriesIDs = append(study.SeriesIDs, seriesID)
	}
	s.studies[studyID] = study
	s.order = append(s.order, studyID)
}

func (f *fakeArchive) fail(serverName string, err error) {
	s := f.server(serverName)
	f.mu.Lock()
	s.err = err
	f.mu.Unlock()
}

func (f *fakeArchive) callCount(serverName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[serverName]
}

func (f *fakeArchive) lookup(server ports.ArchiveServer) (*fakeServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[server.Name]++
	s, ok := f.servers[server.Name]
	if !ok {
		return nil, errors.New("connection refused")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s, nil
}

func (f *fakeArchive) ListStudies(_ context.Context, server ports.ArchiveServer) ([]string, error) {
	s, err := f.lookup(server)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), s.order...), nil
}

func (f *fakeArchive) GetStudy(_ context.Context, server ports.ArchiveServer, studyID string) (reject.ArchiveStudy, error) {
	s, err := f.lookup(server)
	if err != nil {
		return reject.ArchiveStudy{}, err
	}
	study, ok := s.studies[studyID]
	if !ok {
		return reject.ArchiveStudy{}, &archive.StatusError{Server: server.Name, Path: "/studies/" + studyID, StatusCode: 404}
	}
	return study, nil
}

func (f *fakeArchive) GetSeries(_ context.Context, server ports.ArchiveServer, seriesID string) (reject.ArchiveSeries, error) {
	s, err := f.lookup(server)
	if err != nil {
		return reject.ArchiveSeries{}, err
	}
	series, ok := s.series[seriesID]
	if !ok {
		return reject.ArchiveSeries{}, &archive.StatusError{Server: server.Name, Path: "/series/" + seriesID, StatusCode: 404}
	}
	return series, nil
}

type testCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	archive *fakeArchive
	cache   *testCache
	repos   Repositories
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "radreject.sqlite") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repos := Repositories{
		Analyses:     sqliterepo.NewAnalysisRepository(db),
		Examinations: sqliterepo.NewExaminationRepository(db),
		Runs:         sqliterepo.NewAnalysisRunRepository(db),
		Servers:      sqliterepo.NewArchiveServerRepository(db),
		Categories:   sqliterepo.NewCategoryRepository(db),
		Incidents:    sqliterepo.NewIncidentRepository(db),
	}
	fake := newFakeArchive()
	cache := newTestCache()
	svc := NewService(repos, sqliteuow.NewUnitOfWork(db), fake, cache, Options{
		TargetRate:         8,
		MaxConcurrent:      2,
		ComputationTimeout: 30 * time.Second,
		CacheTTL:           time.Hour,
	})
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, db: db, archive: fake, cache: cache, repos: repos}
}

func (f *fixture) addServers(t *testing.T, servers ...ports.ArchiveServer) {
	t.Helper()
	if _, err := f.svc.SyncServers(context.Background(), servers); err != nil {
		t.Fatalf("SyncServers() error = %v", err)
	}
}

func eligible(name string) ports.ArchiveServer {
	return ports.ArchiveServer{
		Name:                    name,
		BaseURL:                 "http://" + name + ":8042",
		Active:                  true,
		IncludeInRejectAnalysis: true,
	}
}

func (f *fixture) addExaminations(t *testing.T, modality string, at time.Time, n int) []ports.Examination {
	t.Helper()
	out := make([]ports.Examination, 0, n)
	for i := 0; i < n; i++ {
		exam, err := f.repos.Examinations.CreateExamination(context.Background(), ports.Examination{
			AccessionNo: fmt.Sprintf("ACC-%s-%d-%d", modality, at.Unix(), i),
			Modality:    modality,
			CreatedAt:   at.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateExamination() error = %v", err)
		}
		out = append(out, exam)
	}
	return out
}

func (f *fixture) addReason(t *testing.T, categoryName string) ports.Reason {
	t.Helper()
	ctx := context.Background()
	category, err := f.svc.CreateCategory(ctx, CategoryInput{Name: categoryName, Type: "human_fault"})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	reason, err := f.svc.CreateReason(ctx, ReasonInput{CategoryID: category.CategoryID, Text: "Patient motion"})
	if err != nil {
		t.Fatalf("CreateReason() error = %v", err)
	}
	return reason
}

func mustMonth(t *testing.T, value string) reject.Month {
	t.Helper()
	m, err := reject.ParseMonth(value)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", value, err)
	}
	return m
}

func TestComputeAnalysisScenarioA(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addServers(t, eligible("orthanc-1"))

	for i := 0; i < 4; i++ {
		f.archive.addStudy("orthanc-1", "20240510", "CR", 1)
	}
	f.archive.addStudy("orthanc-1", "20240511", "CR", 4)
	f.addExaminations(t, "CR", time.Date(2024, time.May, 10, 8, 0, 0, 0, time.UTC), 5)

	result, err := f.svc.ComputeAnalysis(ctx, ComputeInput{
		Month:    mustMonth(t, "2024-05"),
		Modality: "cr",
		AutoSave: true,
		Actor:    "qa-officer",
	})
	if err != nil {
		t.Fatalf("ComputeAnalysis() error = %v", err)
	}

	if result.TotalExaminations != 5 || result.TotalImages != 8 || result.TotalRetakes != 3 {
		t.Fatalf("counts = %d/%d/%d, want 5/8/3", result.TotalExaminations, result.TotalImages, result.TotalRetakes)
	}
	if result.RISExaminations != 5 || result.PACSStudies != 5 {
		t.Fatalf("ris/pacs = %d/%d, want 5/5", result.RISExaminations, result.PACSStudies)
	}
	if result.Method != reject.MethodPACSEstimate {
		t.Fatalf("method = %s, want PACS_ESTIMATE", result.Method)
	}
	if result.Analysis == nil {
		t.Fatalf("analysis not saved")
	}
	if result.Analysis.RejectRate != 37.5 || result.Analysis.Compliance {
		t.Fatalf("analysis rate/compliance = %v/%v", result.Analysis.RejectRate, result.Analysis.Compliance)
	}
	if result.Analysis.Status() != reject.StatusCritical {
		t.Fatalf("status = %s, want CRITICAL", result.Analysis.Status())
	}
	if result.Analysis.Modality != "CR" || result.Analysis.CreatedBy != "qa-officer" {
		t.Fatalf("analysis = %#v", result.Analysis)
	}

	runs, err := f.svc.ListRuns(ctx, ports.AnalysisRunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || !runs[0].Saved || runs[0].RunID != result.RunID {
		t.Fatalf("runs = %#v", runs)
	}
}

func TestMonthlyImageCountsScenarioB(t *testing.T) {
	f := setupFixture(t)
	f.addServers(t, eligible("orthanc-1"), eligible("orthanc-2"))
	f.archive.addStudy("orthanc-1", "20240305", "CR", 2)
	f.archive.fail("orthanc-2", errors.New("connection refused"))

	counts, err := f.svc.MonthlyImageCounts(context.Background(), ImageCountsInput{Year: 2024, Month: 3})
	if err != nil {
		t.Fatalf("MonthlyImageCounts() error = %v", err)
	}
	if counts.TotalStudies != 1 || counts.TotalImages != 2 {
		t.Fatalf("studies/images = %d/%d, want 1/2", counts.TotalStudies, counts.TotalImages)
	}
	if len(counts.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", counts.Warnings)
	}
	if counts.Warnings[0] != "archive orthanc-2 unavailable: list studies: connection refused" {
		t.Fatalf("warning = %q", counts.Warnings[0])
	}
	if counts.Error != "" {
		t.Fatalf("error = %q, want empty", counts.Error)
	}
}

func TestScenarioCNoEligibleServers(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	disabled := eligible("orthanc-off")
	disabled.IncludeInRejectAnalysis = false
	f.addServers(t, disabled)

	counts, err := f.svc.MonthlyImageCounts(ctx, ImageCountsInput{Year: 2024, Month: 3, Modality: "CR"})
	if !errors.Is(err, reject.ErrNoEligibleServers) {
		t.Fatalf("MonthlyImageCounts() error = %v, want ErrNoEligibleServers", err)
	}
	if counts.Error != "no eligible servers configured" {
		t.Fatalf("counts.Error = %q", counts.Error)
	}
	if counts.TotalImages != 0 || counts.TotalStudies != 0 {
		t.Fatalf("counts = %#v, want zeros", counts)
	}

	result, err := f.svc.ComputeAnalysis(ctx, ComputeInput{Month: mustMonth(t, "2024-03"), Modality: "CR", AutoSave: true, Actor: "qa"})
	if !errors.Is(err, reject.ErrNoEligibleServers) {
		t.Fatalf("ComputeAnalysis() error = %v, want ErrNoEligibleServers", err)
	}
	if result.Analysis != nil || result.TotalImages != 0 {
		t.Fatalf("result = %#v", result)
	}
	runs, err := f.svc.ListRuns(ctx, ports.AnalysisRunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs = %d, want none", len(runs))
	}
}

func TestMonthlyImageCountsServerOverride(t *testing.T) {
	f := setupFixture(t)
	disabled := eligible("orthanc-diag")
	disabled.Active = false
	f.addServers(t, eligible("orthanc-1"), disabled)
	f.archive.addStudy("orthanc-1", "20240305", "CR", 5)
	f.archive.addStudy("orthanc-diag", "20240305", "CR", 1)

	counts, err := f.svc.MonthlyImageCounts(context.Background(), ImageCountsInput{Year: 2024, Month: 3, Server: "orthanc-diag"})
	if err != nil {
		t.Fatalf("MonthlyImageCounts() error = %v", err)
	}
	if counts.TotalImages != 1 {
		t.Fatalf("total images = %d, want 1 from override only", counts.TotalImages)
	}

	_, err = f.svc.MonthlyImageCounts(context.Background(), ImageCountsInput{Year: 2024, Month: 3, Server: "missing"})
	if !errors.Is(err, reject.ErrUnknownServer) {
		t.Fatalf("unknown server error = %v", err)
	}
}

func TestMonthlyImageCountsFiltersHierarchy(t *testing.T) {
	f := setupFixture(t)
	f.addServers(t, eligible("orthanc-1"))
	f.archive.addStudy("orthanc-1", "20240301", "CR", 2, 3)
	f.archive.addStudy("orthanc-1", "20240331", "DX", 1)
	f.archive.addStudy("orthanc-1", "20240401", "CR", 7)
	f.archive.addStudy("orthanc-1", "20240229", "CR", 7)
	f.archive.addStudy("orthanc-1", "2024-03-15", "CR", 7)
	f.archive.addStudy("orthanc-1", "", "CR", 7)
	f.archive.addStudy("orthanc-1", "20240310", "", 7)

	// A study listed but deleted before it is fetched.
	s := f.archive.server("orthanc-1")
	s.order = append(s.order, "vanished")

	all, err := f.svc.MonthlyImageCounts(context.Background(), ImageCountsInput{Year: 2024, Month: 3})
	if err != nil {
		t.Fatalf("MonthlyImageCounts() error = %v", err)
	}
	if all.TotalStudies != 2 || all.TotalImages != 6 {
		t.Fatalf("all = %d studies / %d images, want 2/6", all.TotalStudies, all.TotalImages)
	}
	if got := all.ForModality("CR"); got.Images != 5 || got.Studies != 1 {
		t.Fatalf("CR breakdown = %#v, want 5 images in 1 study", got)
	}
	if len(all.Warnings) != 0 {
		t.Fatalf("warnings = %v", all.Warnings)
	}

	dx, err := f.svc.MonthlyImageCounts(context.Background(), ImageCountsInput{Year: 2024, Month: 3, Modality: "dx"})
	if err != nil {
		t.Fatalf("MonthlyImageCounts(DX) error = %v", err)
	}
	if dx.TotalStudies != 1 || dx.TotalImages != 1 {
		t.Fatalf("dx = %d studies / %d images, want 1/1", dx.TotalStudies, dx.TotalImages)
	}
}

func TestComputeAnalysisIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addServers(t, eligible("orthanc-1"))
	f.archive.addStudy("orthanc-1", "20240402", "DX", 3)
	f.addExaminations(t, "DX", time.Date(2024, time.April, 2, 10, 0, 0, 0, time.UTC), 2)

	input := ComputeInput{Month: mustMonth(t, "2024-04"), Modality: "DX", AutoSave: true, Actor: "qa"}
	first, err := f.svc.ComputeAnalysis(ctx, input)
	if err != nil {
		t.Fatalf("first ComputeAnalysis() error = %v", err)
	}
	second, err := f.svc.ComputeAnalysis(ctx, input)
	if err != nil {
		t.Fatalf("second ComputeAnalysis() error = %v", err)
	}

	if first.Analysis.AnalysisID != second.Analysis.AnalysisID {
		t.Fatalf("analysis ids differ: %d vs %d", first.Analysis.AnalysisID, second.Analysis.AnalysisID)
	}
	if first.Analysis.RejectRate != second.Analysis.RejectRate || second.Analysis.TotalRetakes != 1 {
		t.Fatalf("second analysis = %#v", second.Analysis)
	}
	analyses, err := f.repos.Analyses.ListAnalyses(ctx, "DX", []int{2024})
	if err != nil {
		t.Fatalf("ListAnalyses() error = %v", err)
	}
	if len(analyses) != 1 {
		t.Fatalf("analyses = %d, want exactly one per (month, modality)", len(analyses))
	}
}

func TestComputeAnalysisAllServersFailedIsRISOnly(t *testing.T) {
	f := setupFixture(t)
	f.addServers(t, eligible("orthanc-1"), eligible("orthanc-2"))
	f.archive.fail("orthanc-1", errors.New("timeout"))
	f.archive.fail("orthanc-2", errors.New("connection refused"))
	f.addExaminations(t, "CR", time.Date(2024, time.May, 3, 8, 0, 0, 0, time.UTC), 3)

	result, err := f.svc.ComputeAnalysis(context.Background(), ComputeInput{Month: mustMonth(t, "2024-05"), Modality: "CR", Actor: "qa"})
	if err != nil {
		t.Fatalf("ComputeAnalysis() error = %v", err)
	}
	if result.Method != reject.MethodRISOnly {
		t.Fatalf("method = %s, want RIS_ONLY", result.Method)
	}
	if result.TotalExaminations != 3 || result.TotalImages != 0 || result.TotalRetakes != 0 {
		t.Fatalf("result = %#v", result)
	}
	if len(result.PACSWarnings) != 2 {
		t.Fatalf("warnings = %v, want two", result.PACSWarnings)
	}
	if result.Analysis != nil {
		t.Fatalf("analysis saved without AutoSave")
	}
}

func TestComputeAnalysisIncidentLedgerSupersedesEstimate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addServers(t, eligible("orthanc-1"))
	f.archive.addStudy("orthanc-1", "20240507", "CR", 6)
	f.archive.addStudy("orthanc-1", "20240508", "CR", 4)
	exams := f.addExaminations(t, "CR", time.Date(2024, time.May, 7, 8, 0, 0, 0, time.UTC), 2)
	reason := f.addReason(t, "Positioning")

	for _, retakes := range []int{1, 2} {
		if _, err := f.svc.RecordIncident(ctx, IncidentInput{
			ExaminationID: exams[0].ExaminationID,
			ReasonID:      reason.ReasonID,
			RetakeCount:   retakes,
			Technologist:  "rt-anna",
			OccurredAt:    time.Date(2024, time.May, 7, 9, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("RecordIncident() error = %v", err)
		}
	}

	result, err := f.svc.ComputeAnalysis(ctx, ComputeInput{Month: mustMonth(t, "2024-05"), Modality: "CR", AutoSave: true, Actor: "qa"})
	if err != nil {
		t.Fatalf("ComputeAnalysis() error = %v", err)
	}
	if result.Method != reject.MethodIncidentLedger || result.TotalRetakes != 3 {
		t.Fatalf("method/retakes = %s/%d, want INCIDENT_LEDGER/3", result.Method, result.TotalRetakes)
	}
	if result.Analysis.RejectRate != 30 {
		t.Fatalf("reject rate = %v, want 30", result.Analysis.RejectRate)
	}

	analysisID := result.Analysis.AnalysisID
	attached, err := f.svc.ListIncidents(ctx, ports.IncidentFilter{AnalysisID: &analysisID})
	if err != nil {
		t.Fatalf("ListIncidents() error = %v", err)
	}
	if len(attached) != 2 {
		t.Fatalf("attached incidents = %d, want 2", len(attached))
	}
}

func TestComputeAnalysisKeepsStoredTargetRate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addServers(t, eligible("orthanc-1"))
	f.archive.addStudy("orthanc-1", "20240507", "CR", 11)
	f.addExaminations(t, "CR", time.Date(2024, time.May, 7, 8, 0, 0, 0, time.UTC), 10)

	target := 12.0
	if _, err := f.svc.SaveManualAnalysis(ctx, ManualAnalysisInput{
		Month: mustMonth(t, "2024-05"), Modality: "CR",
		TotalExaminations: 1, TotalImages: 1, TargetRate: &target, Actor: "qm",
	}); err != nil {
		t.Fatalf("SaveManualAnalysis() error = %v", err)
	}

	result, err := f.svc.ComputeAnalysis(ctx, ComputeInput{Month: mustMonth(t, "2024-05"), Modality: "CR", AutoSave: true, Actor: "qa"})
	if err != nil {
		t.Fatalf("ComputeAnalysis() error = %v", err)
	}
	if result.Analysis.TargetRate != 12 {
		t.Fatalf("target = %v, want stored 12", result.Analysis.TargetRate)
	}
	if result.Analysis.RejectRate != 9.09 || !result.Analysis.Compliance {
		t.Fatalf("rate/compliance = %v/%v", result.Analysis.RejectRate, result.Analysis.Compliance)
	}
}

func TestMonthlyImageCountsUsesClosedMonthCache(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.addServers(t, eligible("orthanc-1"))
	f.archive.addStudy("orthanc-1", "20240502", "CR", 2)
	f.archive.addStudy("orthanc-1", "20240610", "CR", 2)

	closed := ImageCountsInput{Year: 2024, Month: 5, Modality: "CR"}
	if _, err := f.svc.MonthlyImageCounts(ctx, closed); err != nil {
		t.Fatalf("first MonthlyImageCounts() error = %v", err)
	}
	calls := f.archive.callCount("orthanc-1")
	if f.cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", f.cache.sets)
	}

	cached, err := f.svc.MonthlyImageCounts(ctx, closed)
	if err != nil {
		t.Fatalf("cached MonthlyImageCounts() error = %v", err)
	}
	if f.archive.callCount("orthanc-1") != calls {
		t.Fatalf("archive queried despite cached closed month")
	}
	if cached.TotalImages != 2 || cached.ForModality("CR").Studies != 1 {
		t.Fatalf("cached counts = %#v", cached)
	}

	closed.Refresh = true
	if _, err := f.svc.MonthlyImageCounts(ctx, closed); err != nil {
		t.Fatalf("refresh MonthlyImageCounts() error = %v", err)
	}
	if f.archive.callCount("orthanc-1") == calls {
		t.Fatalf("refresh did not query the archive")
	}

	if _, err := f.svc.MonthlyImageCounts(ctx, ImageCountsInput{Year: 2024, Month: 6, Modality: "CR"}); err != nil {
		t.Fatalf("current month MonthlyImageCounts() error = %v", err)
	}
	if _, ok := f.cache.data[imageCountsKey("orthanc-1", mustMonth(t, "2024-06"), "CR")]; ok {
		t.Fatalf("current month was cached")
	}
}

func TestMonthlyImageCountsRejectsInvalidInput(t *testing.T) {
	f := setupFixture(t)
	cases := []ImageCountsInput{
		{Year: 2024, Month: 13},
		{Year: 2024, Month: 0},
		{Year: 2024, Month: 5, Modality: "C R!"},
	}
	for _, input := range cases {
		if _, err := f.svc.MonthlyImageCounts(context.Background(), input); !errors.Is(err, reject.ErrValidation) {
			t.Fatalf("MonthlyImageCounts(%#v) error = %v, want validation error", input, err)
		}
	}
}

func TestComputeAnalysisRequiresActorAndModality(t *testing.T) {
	f := setupFixture(t)
	month := mustMonth(t, "2024-05")
	if _, err := f.svc.ComputeAnalysis(context.Background(), ComputeInput{Month: month, Modality: "CR", Actor: "  "}); !errors.Is(err, errActorRequired) {
		t.Fatalf("missing actor error = %v", err)
	}
	if _, err := f.svc.ComputeAnalysis(context.Background(), ComputeInput{Month: month, Actor: "qa"}); !errors.Is(err, errModalityRequired) {
		t.Fatalf("missing modality error = %v", err)
	}
}
