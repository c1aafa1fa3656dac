package rejectrate

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type StatisticsInput struct {
	Modality string
	Years    []int
}

type MonthlyPoint struct {
	reject.MonthlyRate
	Status   reject.Status
	Method   reject.CalculationMethod
	Approved bool
}

type Statistics struct {
	Modality   string
	Years      []int
	Points     []MonthlyPoint
	Trend      reject.Trend
	Compliance reject.ComplianceSummary
}

// Statistics reads persisted analyses only; nothing is recomputed from the archives.
func (s *Service) Statistics(ctx context.Context, input StatisticsInput) (Statistics, error) {
	if err := checkContext(ctx); err != nil {
		return Statistics{}, err
	}
	modality, err := requireModality(input.Modality)
	if err != nil {
		return Statistics{}, err
	}
	years := lo.Uniq(input.Years)
	if len(years) == 0 {
		years = []int{s.now().UTC().Year()}
	}
	for _, year := range years {
		if _, err := reject.NewMonth(year, 1); err != nil {
			return Statistics{}, reject.Invalid("year", err.Error(), reject.ErrInvalidMonth)
		}
	}
	sort.Ints(years)

	analyses, err := s.repos.Analyses.ListAnalyses(ctx, modality, years)
	if err != nil {
		return Statistics{}, errs.Wrap(err, "list analyses")
	}
	return buildStatistics(modality, years, analyses, s.opts.TrendWindow, s.opts.StableThreshold), nil
}

func buildStatistics(modality string, years []int, analyses []ports.Analysis, window int, stableThreshold float64) Statistics {
	rates := lo.Map(analyses, func(a ports.Analysis, _ int) reject.MonthlyRate {
		return reject.MonthlyRate{
			Month:      a.Month,
			RejectRate: a.RejectRate,
			TargetRate: a.TargetRate,
			Compliance: a.Compliance,
			Images:     a.TotalImages,
			Retakes:    a.TotalRetakes,
		}
	})
	reject.SortMonthlyRates(rates)

	byMonth := lo.KeyBy(analyses, func(a ports.Analysis) reject.Month { return a.Month })
	points := lo.Map(rates, func(rate reject.MonthlyRate, _ int) MonthlyPoint {
		analysis := byMonth[rate.Month]
		return MonthlyPoint{
			MonthlyRate: rate,
			Status:      analysis.Status(),
			Method:      analysis.Method,
			Approved:    analysis.Approved(),
		}
	})

	return Statistics{
		Modality:   modality,
		Years:      years,
		Points:     points,
		Trend:      reject.ComputeTrend(rates, window, stableThreshold),
		Compliance: reject.SummarizeCompliance(rates),
	}
}
