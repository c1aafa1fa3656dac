package reject

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendWorsening TrendDirection = "WORSENING"
	TrendStable    TrendDirection = "STABLE"
)

const (
	DefaultTrendWindow     = 3
	DefaultStableThreshold = 5.0
)

type MonthlyRate struct {
	Month      Month
	RejectRate float64
	TargetRate float64
	Compliance bool
	Images     int64
	Retakes    int64
}

type Trend struct {
	Direction        TrendDirection
	ChangePercent    float64
	LatestRate       float64
	BaselineRate     float64
	InsufficientData bool
}

type ComplianceSummary struct {
	Months             int
	CompliantMonths    int
	NonCompliantMonths int
	AverageRejectRate  float64
	OverallRejectRate  float64
}

func SortMonthlyRates(points []MonthlyRate) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Month.Before(points[j].Month)
	})
}

// ComputeTrend compares the latest month against the mean of up to window
// preceding months. Changes within stableThreshold percent are STABLE.
func ComputeTrend(points []MonthlyRate, window int, stableThreshold float64) Trend {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if stableThreshold < 0 {
		stableThreshold = DefaultStableThreshold
	}

	sorted := append([]MonthlyRate(nil), points...)
	SortMonthlyRates(sorted)
	if len(sorted) < 2 {
		out := Trend{Direction: TrendStable, InsufficientData: true}
		if len(sorted) == 1 {
			out.LatestRate = sorted[0].RejectRate
			out.BaselineRate = sorted[0].RejectRate
		}
		return out
	}

	latest := sorted[len(sorted)-1]
	prior := sorted[:len(sorted)-1]
	if len(prior) > window {
		prior = prior[len(prior)-window:]
	}
	baseline := Round2(lo.SumBy(prior, func(p MonthlyRate) float64 { return p.RejectRate }) / float64(len(prior)))

	out := Trend{
		LatestRate:   latest.RejectRate,
		BaselineRate: baseline,
	}
	switch {
	case baseline == 0 && latest.RejectRate == 0:
		out.Direction = TrendStable
		return out
	case baseline == 0:
		out.Direction = TrendWorsening
		out.ChangePercent = 100
		return out
	}

	out.ChangePercent = Round2((latest.RejectRate - baseline) / baseline * 100)
	switch {
	case math.Abs(out.ChangePercent) <= stableThreshold:
		out.Direction = TrendStable
	case out.ChangePercent < 0:
		out.Direction = TrendImproving
	default:
		out.Direction = TrendWorsening
	}
	return out
}

func SummarizeCompliance(points []MonthlyRate) ComplianceSummary {
	out := ComplianceSummary{Months: len(points)}
	if len(points) == 0 {
		return out
	}

	var images, retakes int64
	var rateSum float64
	for _, p := range points {
		if p.Compliance {
			out.CompliantMonths++
		} else {
			out.NonCompliantMonths++
		}
		rateSum += p.RejectRate
		images += p.Images
		retakes += p.Retakes
	}
	out.AverageRejectRate = Round2(rateSum / float64(len(points)))
	out.OverallRejectRate = RejectRate(retakes, images)
	return out
}
