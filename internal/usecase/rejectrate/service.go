package rejectrate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

const tracerName = "radreject/usecase/rejectrate"

var (
	errActorRequired    = errors.New("actor is required")
	errModalityRequired = errors.New("modality is required")
)

// Repositories groups the persistence ports the service reads and writes.
type Repositories struct {
	Analyses     ports.AnalysisRepository
	Examinations ports.ExaminationRepository
	Runs         ports.AnalysisRunRepository
	Servers      ports.ArchiveServerRepository
	Categories   ports.CategoryRepository
	Incidents    ports.IncidentRepository
}

type Options struct {
	TargetRate         float64
	MaxConcurrent      int
	ComputationTimeout time.Duration
	CacheTTL           time.Duration
	TrendWindow        int
	StableThreshold    float64
}

func (o Options) withDefaults() Options {
	if o.TargetRate <= 0 {
		o.TargetRate = reject.DefaultTargetRate
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = 4
	}
	if o.MaxConcurrent > 8 {
		o.MaxConcurrent = 8
	}
	if o.TrendWindow < 1 {
		o.TrendWindow = reject.DefaultTrendWindow
	}
	if o.StableThreshold <= 0 {
		o.StableThreshold = reject.DefaultStableThreshold
	}
	return o
}

type Service struct {
	repos    Repositories
	uow      ports.UnitOfWork
	archive  ports.ArchiveClient
	cache    ports.Cache
	opts     Options
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time
	newRunID func() string
}

// NewService wires the reject-rate usecases. cache may be nil.
func NewService(repos Repositories, uow ports.UnitOfWork, archive ports.ArchiveClient, cache ports.Cache, opts Options) *Service {
	return &Service{
		repos:    repos,
		uow:      uow,
		archive:  archive,
		cache:    cache,
		opts:     opts.withDefaults(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

func (s *Service) Options() Options {
	return s.opts
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

// withComputationDeadline applies the configured overall deadline unless the
// caller already set a tighter one.
func (s *Service) withComputationDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ComputationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= s.opts.ComputationTimeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.ComputationTimeout)
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// validateStruct turns validator failures into a reject.ValidationError
// naming the first offending field.
func (s *Service) validateStruct(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return reject.Invalid(toSnake(first.Field()), "failed "+first.Tag()+" rule", nil)
	}
	return errs.Wrap(err, "validate input")
}

func requireModality(value string) (string, error) {
	modality, err := reject.NormalizeModality(value)
	if err != nil {
		return "", reject.Invalid("modality", err.Error(), reject.ErrInvalidModality)
	}
	if modality == "" {
		return "", reject.Invalid("modality", "is required", errModalityRequired)
	}
	return modality, nil
}

func requireActor(value string) (string, error) {
	actor := strings.TrimSpace(value)
	if actor == "" {
		return "", reject.Invalid("actor", "is required", errActorRequired)
	}
	return actor, nil
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
