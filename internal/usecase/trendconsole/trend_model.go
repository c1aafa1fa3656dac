package trendconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/usecase/rejectrate"
)

const barWidth = 40

// StatisticsSource is satisfied by *rejectrate.Service.
type StatisticsSource interface {
	Statistics(ctx context.Context, input rejectrate.StatisticsInput) (rejectrate.Statistics, error)
}

type TrendOptions struct {
	Modalities      []string
	Year            int
	RefreshInterval time.Duration
}

type trendModel struct {
	ctx             context.Context
	source          StatisticsSource
	modalities      []string
	modalityIndex   int
	year            int
	refreshInterval time.Duration

	stats         rejectrate.Statistics
	loaded        bool
	selectedIndex int
	status        string
}

type statsLoadedMsg struct {
	modality string
	year     int
	stats    rejectrate.Statistics
	err      error
}

type tickMsg struct{}

func NewTrendModel(ctx context.Context, source StatisticsSource, options TrendOptions) tea.Model {
	modalities := make([]string, 0, len(options.Modalities))
	for _, raw := range options.Modalities {
		if modality, err := reject.NormalizeModality(raw); err == nil && modality != "" {
			modalities = append(modalities, modality)
		}
	}
	if len(modalities) == 0 {
		modalities = []string{"CR"}
	}
	year := options.Year
	if year <= 0 {
		year = time.Now().Year()
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}

	return &trendModel{
		ctx:             ctx,
		source:          source,
		modalities:      modalities,
		year:            year,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *trendModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *trendModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case statsLoadedMsg:
		if msg.modality != m.modality() || msg.year != m.year {
			return m, nil
		}
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.stats = msg.stats
		m.loaded = true
		if m.selectedIndex >= len(m.stats.Points) {
			m.selectedIndex = len(m.stats.Points) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("%d months loaded", len(m.stats.Points))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.stats.Points)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "left", "h":
			m.year--
			return m, m.reload()
		case "right", "l":
			m.year++
			return m, m.reload()
		case "tab":
			m.modalityIndex = (m.modalityIndex + 1) % len(m.modalities)
			return m, m.reload()
		}
	}
	return m, nil
}

func (m *trendModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Reject Rate Trend"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("modality=%s year=%d refresh=%s", m.modality(), m.year, m.refreshInterval)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Months"))
	builder.WriteString("\n")
	if !m.loaded || len(m.stats.Points) == 0 {
		builder.WriteString(dimStyle.Render("- no saved analyses"))
		builder.WriteString("\n\n")
	} else {
		scale := maxRate(m.stats.Points)
		for index, point := range m.stats.Points {
			line := fmt.Sprintf("%s %6.2f%% %-8s %s", point.Month, point.RejectRate, point.Status, bar(point.RejectRate, scale))
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + statusStyle(point.Status).Render(line))
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")

		point := m.stats.Points[m.selectedIndex]
		builder.WriteString(sectionStyle.Render("Detail"))
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("Month: %s  Target: %.2f%%  Compliant: %t\n", point.Month, point.TargetRate, point.Compliance))
		builder.WriteString(fmt.Sprintf("Images: %d  Retakes: %d  Method: %s  Approved: %t\n\n", point.Images, point.Retakes, point.Method, point.Approved))
	}

	builder.WriteString(sectionStyle.Render("Summary"))
	builder.WriteString("\n")
	builder.WriteString(summaryLine(m.stats))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("j/k select  h/l year  tab modality  g refresh  q quit"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render("status: " + m.status))
	builder.WriteString("\n")
	return builder.String()
}

func (m *trendModel) modality() string {
	return m.modalities[m.modalityIndex]
}

func (m *trendModel) reload() tea.Cmd {
	m.loaded = false
	m.selectedIndex = 0
	m.status = "loading"
	return m.loadCmd()
}

func (m *trendModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *trendModel) loadCmd() tea.Cmd {
	modality := m.modality()
	year := m.year
	return func() tea.Msg {
		stats, err := m.source.Statistics(m.ctx, rejectrate.StatisticsInput{Modality: modality, Years: []int{year}})
		if err != nil {
			logging.Warn(m.ctx, "trend console load failed",
				slog.String("component", "usecase.trendconsole"),
				slog.String("modality", modality),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		return statsLoadedMsg{modality: modality, year: year, stats: stats, err: err}
	}
}

func summaryLine(stats rejectrate.Statistics) string {
	if stats.Compliance.Months == 0 {
		return "no data"
	}
	trend := string(stats.Trend.Direction)
	if stats.Trend.InsufficientData {
		trend = "n/a (one month)"
	} else {
		trend = fmt.Sprintf("%s %+.2f%% vs %.2f%% baseline", trend, stats.Trend.ChangePercent, stats.Trend.BaselineRate)
	}
	return fmt.Sprintf("trend=%s  average=%.2f%%  overall=%.2f%%  non-compliant=%d/%d",
		trend,
		stats.Compliance.AverageRejectRate,
		stats.Compliance.OverallRejectRate,
		stats.Compliance.NonCompliantMonths,
		stats.Compliance.Months,
	)
}

func statusStyle(status reject.Status) lipgloss.Style {
	switch status {
	case reject.StatusGood:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	case reject.StatusWarning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	}
}

func maxRate(points []rejectrate.MonthlyPoint) float64 {
	out := 0.0
	for _, point := range points {
		out = max(out, point.RejectRate, point.TargetRate)
	}
	return out
}

// bar scales rate against scale into at most barWidth cells.
func bar(rate float64, scale float64) string {
	if scale <= 0 || rate <= 0 {
		return ""
	}
	cells := int(rate / scale * barWidth)
	if cells < 1 {
		cells = 1
	}
	return strings.Repeat("#", min(cells, barWidth))
}
