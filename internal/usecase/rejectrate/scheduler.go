package rejectrate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
)

type ScheduleOptions struct {
	// Spec is a standard five-field cron expression.
	Spec       string
	Modalities []string
	Actor      string
}

// Scheduler computes and saves the previous month's analysis for each
// configured modality on a cron schedule.
type Scheduler struct {
	service    *Service
	spec       string
	modalities []string
	actor      string
}

func NewScheduler(service *Service, opts ScheduleOptions) (*Scheduler, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	if _, err := cron.ParseStandard(opts.Spec); err != nil {
		return nil, reject.Invalid("schedule.cron", err.Error(), nil)
	}

	modalities := make([]string, 0, len(opts.Modalities))
	for _, raw := range opts.Modalities {
		modality, err := requireModality(raw)
		if err != nil {
			return nil, err
		}
		modalities = append(modalities, modality)
	}
	modalities = lo.Uniq(modalities)
	if len(modalities) == 0 {
		return nil, reject.Invalid("schedule.modalities", "at least one modality is required", errModalityRequired)
	}
	actor, err := requireActor(opts.Actor)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		service:    service,
		spec:       strings.TrimSpace(opts.Spec),
		modalities: modalities,
		actor:      actor,
	}, nil
}

// RunOnce saves the month before now for every modality. A failing modality
// does not stop the others; failures are joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	month := reject.MonthOf(s.service.now().UTC()).Previous()
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.rejectrate.scheduler"),
		slog.String("month", month.String()),
	)

	var failures []error
	for _, modality := range s.modalities {
		result, err := s.service.ComputeAnalysis(ctx, ComputeInput{
			Month:    month,
			Modality: modality,
			AutoSave: true,
			Actor:    s.actor,
		})
		if err != nil {
			logging.Error(ctx, "scheduled analysis failed",
				slog.String("modality", modality),
				slog.Any("err", errs.Loggable(err)),
			)
			failures = append(failures, errs.Wrapf(err, "compute %s", modality))
			continue
		}
		logging.Info(ctx, "scheduled analysis saved",
			slog.String("modality", modality),
			slog.String("run_id", result.RunID),
			slog.Int("warnings", len(result.PACSWarnings)),
		)
	}
	return errors.Join(failures...)
}

// Run blocks until ctx is cancelled, then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	logger := cronLogger{ctx: logging.WithAttrs(ctx, slog.String("component", "usecase.rejectrate.scheduler"))}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.spec, func() {
		_ = s.RunOnce(ctx)
	}); err != nil {
		return errs.Wrap(err, "register schedule")
	}

	c.Start()
	logging.Info(logger.ctx, "scheduler started",
		slog.String("cron", s.spec),
		slog.Any("modalities", s.modalities),
	)
	<-ctx.Done()
	<-c.Stop().Done()
	logging.Info(logger.ctx, "scheduler stopped")
	return nil
}

// cronLogger routes cron's key/value logging into the context logger.
type cronLogger struct {
	ctx context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger().Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.Any("err", errs.Loggable(err))}, keysAndValues...)
	l.logger().Error(msg, args...)
}

func (l cronLogger) logger() *slog.Logger {
	attrs := logging.Attrs(l.ctx)
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return logging.Logger(l.ctx).With(args...)
}
