package rejectrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

type ImageCountsInput struct {
	Year     int
	Month    int
	Modality string
	// Server restricts the query to one named archive, eligible or not.
	Server string
	// Refresh skips cached closed-month counts.
	Refresh bool
}

type aggregation struct {
	Counts    reject.ImageCounts
	Servers   int
	Succeeded int
}

// MonthlyImageCounts sums archive image and study counts for one month across
// every eligible archive. Failing archives become warnings. The only error
// case with a populated result is reject.ErrNoEligibleServers.
func (s *Service) MonthlyImageCounts(ctx context.Context, input ImageCountsInput) (reject.ImageCounts, error) {
	if err := checkContext(ctx); err != nil {
		return reject.ImageCounts{}, err
	}

	month, err := reject.NewMonth(input.Year, input.Month)
	if err != nil {
		return reject.ImageCounts{}, reject.Invalid("month", err.Error(), reject.ErrInvalidMonth)
	}
	modality, err := reject.NormalizeModality(input.Modality)
	if err != nil {
		return reject.ImageCounts{}, reject.Invalid("modality", err.Error(), reject.ErrInvalidModality)
	}

	ctx, cancel := s.withComputationDeadline(ctx)
	defer cancel()

	result, err := s.aggregate(ctx, month, modality, input.Server, input.Refresh)
	return result.Counts, err
}

func (s *Service) aggregate(ctx context.Context, month reject.Month, modality string, serverName string, refresh bool) (aggregation, error) {
	ctx, span := s.tracer.Start(ctx, "rejectrate.aggregate", trace.WithAttributes(
		attribute.String("month", month.String()),
		attribute.String("modality", modality),
	))
	defer span.End()

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.rejectrate.aggregate"),
		slog.String("month", month.String()),
		slog.String("modality", modality),
	)
	if sc := span.SpanContext(); sc.IsValid() {
		logCtx = logging.WithTelemetry(logCtx, sc.TraceID().String(), sc.SpanID().String())
	}

	servers, err := s.resolveServers(logCtx, serverName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, reject.ErrNoEligibleServers) {
			empty := reject.NewImageCounts()
			empty.Error = reject.ErrNoEligibleServers.Error()
			logging.Error(logCtx, "image count aggregation aborted", slog.Any("err", errs.Loggable(err)))
			return aggregation{Counts: empty}, err
		}
		return aggregation{Counts: reject.NewImageCounts()}, err
	}

	window := reject.NewDayWindow(month)
	results := make(chan reject.ServerOutcome, len(servers))
	go func() {
		var g errgroup.Group
		g.SetLimit(s.opts.MaxConcurrent)
		for _, server := range servers {
			g.Go(func() error {
				results <- s.queryServer(logCtx, server, month, window, modality, refresh)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	out := aggregation{Counts: reject.NewImageCounts(), Servers: len(servers)}
	for outcome := range results {
		if outcome.Failed() {
			out.Counts.Warnings = append(out.Counts.Warnings, outcome.Warning())
			logging.Warn(logCtx, "archive dropped from aggregation",
				slog.String("server", outcome.Server),
				slog.Any("err", errs.Loggable(outcome.Err)),
			)
			continue
		}
		out.Succeeded++
		out.Counts.Add(outcome.Counts)
	}
	sort.Strings(out.Counts.Warnings)

	span.SetAttributes(
		attribute.Int("servers", out.Servers),
		attribute.Int("servers_failed", out.Servers-out.Succeeded),
		attribute.Int64("total_images", out.Counts.TotalImages),
	)
	logging.Info(logCtx, "image counts aggregated",
		slog.Int("servers", out.Servers),
		slog.Int("servers_failed", out.Servers-out.Succeeded),
		slog.Int64("total_images", out.Counts.TotalImages),
		slog.Int64("total_studies", out.Counts.TotalStudies),
	)
	return out, nil
}

func (s *Service) resolveServers(ctx context.Context, serverName string) ([]ports.ArchiveServer, error) {
	if serverName != "" {
		server, err := s.repos.Servers.GetArchiveServerByName(ctx, serverName)
		if err != nil {
			if errors.Is(err, ports.ErrArchiveServerNotFound) {
				return nil, fmt.Errorf("%w: %q", reject.ErrUnknownServer, serverName)
			}
			return nil, errs.Wrap(err, "load archive server")
		}
		return []ports.ArchiveServer{server}, nil
	}

	servers, err := s.repos.Servers.ListEligibleArchiveServers(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list eligible archive servers")
	}
	if len(servers) == 0 {
		return nil, reject.ErrNoEligibleServers
	}
	return servers, nil
}

// queryServer walks one archive and never returns an error: failures are
// carried in the outcome.
func (s *Service) queryServer(ctx context.Context, server ports.ArchiveServer, month reject.Month, window reject.DayWindow, modality string, refresh bool) reject.ServerOutcome {
	ctx, span := s.tracer.Start(ctx, "rejectrate.query_server", trace.WithAttributes(attribute.String("server", server.Name)))
	defer span.End()
	logCtx := logging.WithAttrs(ctx, slog.String("server", server.Name))

	key := imageCountsKey(server.Name, month, modality)
	cacheable := s.cache != nil && month.Before(reject.MonthOf(s.now().UTC()))
	if cacheable && !refresh {
		if counts, ok := s.cachedCounts(logCtx, key); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return reject.Success(server.Name, counts)
		}
	}

	counts, err := s.walkArchive(logCtx, server, window, modality)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reject.Failure(server.Name, err)
	}

	if cacheable {
		s.storeCounts(logCtx, key, counts)
	}
	return reject.Success(server.Name, counts)
}

func (s *Service) walkArchive(ctx context.Context, server ports.ArchiveServer, window reject.DayWindow, modality string) (reject.ImageCounts, error) {
	studyIDs, err := s.archive.ListStudies(ctx, server)
	if err != nil {
		return reject.ImageCounts{}, errs.Wrap(err, "list studies")
	}

	counts := reject.NewImageCounts()
	for _, studyID := range studyIDs {
		if err := ctx.Err(); err != nil {
			return reject.ImageCounts{}, errs.Wrap(err, "walk studies")
		}

		study, err := s.archive.GetStudy(ctx, server, studyID)
		if err != nil {
			if vanished(err) {
				logging.Debug(ctx, "study vanished, skipping", slog.String("study_id", studyID))
				continue
			}
			if errors.Is(err, reject.ErrMalformedTag) {
				logging.Debug(ctx, "study skipped", slog.String("study_id", studyID), slog.String("reason", err.Error()))
				continue
			}
			return reject.ImageCounts{}, errs.Wrapf(err, "get study %s", studyID)
		}
		if err := reject.ValidateStudyDate(study.StudyDate); err != nil {
			logging.Debug(ctx, "study skipped", slog.String("study_id", studyID), slog.String("reason", err.Error()))
			continue
		}
		if !window.Contains(study.StudyDate) {
			continue
		}

		series := make([]reject.ArchiveSeries, 0, len(study.SeriesIDs))
		for _, seriesID := range study.SeriesIDs {
			item, err := s.archive.GetSeries(ctx, server, seriesID)
			if err != nil {
				if vanished(err) {
					logging.Debug(ctx, "series vanished, skipping", slog.String("series_id", seriesID))
					continue
				}
				if errors.Is(err, reject.ErrMalformedTag) {
					logging.Debug(ctx, "series skipped", slog.String("series_id", seriesID), slog.String("reason", err.Error()))
					continue
				}
				return reject.ImageCounts{}, errs.Wrapf(err, "get series %s", seriesID)
			}
			normalized, err := reject.ValidateSeriesModality(item.Modality)
			if err != nil {
				logging.Debug(ctx, "series skipped", slog.String("series_id", seriesID), slog.String("reason", err.Error()))
				continue
			}
			item.Modality = normalized
			series = append(series, item)
		}
		counts.Add(reject.TallyStudy(series, modality))
	}
	return counts, nil
}

// vanished reports a resource deleted between listing and fetching it.
func vanished(err error) bool {
	var notFound interface{ NotFound() bool }
	return errors.As(err, &notFound) && notFound.NotFound()
}

func imageCountsKey(server string, month reject.Month, modality string) string {
	if modality == "" {
		modality = "ALL"
	}
	return fmt.Sprintf("image_counts:v1:%s:%s:%s", server, month, modality)
}

func (s *Service) cachedCounts(ctx context.Context, key string) (reject.ImageCounts, bool) {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "read cached image counts failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		return reject.ImageCounts{}, false
	}
	if !found {
		return reject.ImageCounts{}, false
	}

	counts := reject.NewImageCounts()
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		logging.Warn(ctx, "decode cached image counts failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		return reject.ImageCounts{}, false
	}
	if counts.ModalityBreakdown == nil {
		counts.ModalityBreakdown = make(map[string]reject.ModalityCount)
	}
	return counts, true
}

func (s *Service) storeCounts(ctx context.Context, key string, counts reject.ImageCounts) {
	raw, err := json.Marshal(counts)
	if err != nil {
		logging.Warn(ctx, "encode image counts failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.opts.CacheTTL); err != nil {
		logging.Warn(ctx, "cache image counts failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}
