package trendconsole

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"radreject/internal/domain/reject"
	"radreject/internal/usecase/rejectrate"
)

type stubSource struct {
	calls []rejectrate.StatisticsInput
	stats rejectrate.Statistics
	err   error
}

func (s *stubSource) Statistics(_ context.Context, input rejectrate.StatisticsInput) (rejectrate.Statistics, error) {
	s.calls = append(s.calls, input)
	return s.stats, s.err
}

func point(month string, rate float64, status reject.Status) rejectrate.MonthlyPoint {
	m, _ := reject.ParseMonth(month)
	return rejectrate.MonthlyPoint{
		MonthlyRate: reject.MonthlyRate{Month: m, RejectRate: rate, TargetRate: 8, Compliance: rate <= 8},
		Status:      status,
	}
}

func TestBar(t *testing.T) {
	testCases := []struct {
		rate  float64
		scale float64
		want  int
	}{
		{rate: 0, scale: 10, want: 0},
		{rate: 10, scale: 10, want: barWidth},
		{rate: 5, scale: 10, want: barWidth / 2},
		{rate: 0.01, scale: 10, want: 1},
		{rate: 3, scale: 0, want: 0},
	}
	for _, testCase := range testCases {
		if got := len(bar(testCase.rate, testCase.scale)); got != testCase.want {
			t.Fatalf("bar(%v, %v) len = %d, want %d", testCase.rate, testCase.scale, got, testCase.want)
		}
	}
}

func TestTrendModelLoadsAndNavigates(t *testing.T) {
	source := &stubSource{stats: rejectrate.Statistics{
		Modality: "CR",
		Points: []rejectrate.MonthlyPoint{
			point("2024-01", 10, reject.StatusWarning),
			point("2024-02", 7, reject.StatusGood),
		},
		Trend:      reject.Trend{Direction: reject.TrendImproving, ChangePercent: -30, BaselineRate: 10},
		Compliance: reject.ComplianceSummary{Months: 2, CompliantMonths: 1, NonCompliantMonths: 1, AverageRejectRate: 8.5},
	}}
	model := NewTrendModel(context.Background(), source, TrendOptions{Modalities: []string{"cr", "dx"}, Year: 2024}).(*trendModel)

	msg := model.loadCmd()()
	if _, cmd := model.Update(msg); cmd != nil {
		t.Fatalf("unexpected command after load")
	}
	if len(source.calls) != 1 || source.calls[0].Modality != "CR" || source.calls[0].Years[0] != 2024 {
		t.Fatalf("calls = %#v", source.calls)
	}

	view := model.View()
	if !strings.Contains(view, "2024-01") || !strings.Contains(view, "IMPROVING") {
		t.Fatalf("view missing content:\n%s", view)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyDown})
	if model.selectedIndex != 1 {
		t.Fatalf("selectedIndex = %d, want 1", model.selectedIndex)
	}
	model.Update(tea.KeyMsg{Type: tea.KeyDown})
	if model.selectedIndex != 1 {
		t.Fatalf("selectedIndex moved past end")
	}

	model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if model.modality() != "DX" || model.loaded {
		t.Fatalf("tab did not switch modality: %s loaded=%v", model.modality(), model.loaded)
	}

	// A late result for the previous modality is ignored.
	model.Update(statsLoadedMsg{modality: "CR", year: 2024, stats: source.stats})
	if model.loaded {
		t.Fatalf("stale result applied")
	}
}

func TestTrendModelReportsLoadError(t *testing.T) {
	source := &stubSource{err: errors.New("database locked")}
	model := NewTrendModel(context.Background(), source, TrendOptions{Year: 2024}).(*trendModel)

	model.Update(model.loadCmd()())
	if !strings.Contains(model.status, "database locked") {
		t.Fatalf("status = %q", model.status)
	}
	if !strings.Contains(model.View(), "no saved analyses") {
		t.Fatalf("view should show empty state")
	}
}
