package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"radreject/internal/bootstrap/config"
	"radreject/internal/bootstrap/database"
	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
	"radreject/internal/infrastructure/archive"
	cacheinfra "radreject/internal/infrastructure/cache"
	sqliterepo "radreject/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "radreject/internal/infrastructure/persistence/sqlite/uow"
	"radreject/internal/ports"
	"radreject/internal/usecase/rejectrate"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(sqliterepo.NewAnalysisRepository, fx.As(new(ports.AnalysisRepository))),
		fx.Annotate(sqliterepo.NewExaminationRepository, fx.As(new(ports.ExaminationRepository))),
		fx.Annotate(sqliterepo.NewAnalysisRunRepository, fx.As(new(ports.AnalysisRunRepository))),
		fx.Annotate(sqliterepo.NewArchiveServerRepository, fx.As(new(ports.ArchiveServerRepository))),
		fx.Annotate(sqliterepo.NewCategoryRepository, fx.As(new(ports.CategoryRepository))),
		fx.Annotate(sqliterepo.NewIncidentRepository, fx.As(new(ports.IncidentRepository))),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(
		fx.Annotate(
			provideArchiveClient,
			fx.As(new(ports.ArchiveClient)),
		),
	),
	fx.Provide(provideRepositories),
	fx.Provide(provideRejectRateService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

// provideCache picks the count cache named by cache.driver.
func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case "", "sqlite":
		return cacheinfra.NewSQLiteCache(db), nil
	case "none":
		return cacheinfra.NopCache{}, nil
	case "redis":
		redisCache, err := cacheinfra.NewRedisCache(logCtx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, errs.Wrap(err, "connect redis cache")
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return redisCache.Close()
			},
		})
		logging.Info(logCtx, "redis cache connected", slog.String("addr", cfg.Cache.RedisAddr))
		return redisCache, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}
}

func provideArchiveClient(cfg config.Config) *archive.Client {
	return archive.NewClient(archive.Options{
		Timeout:              cfg.Archive.Timeout,
		MaxRetries:           cfg.Archive.MaxRetries,
		RetryInitialInterval: cfg.Archive.RetryInitialInterval,
	})
}

type repositoryParams struct {
	fx.In

	Analyses     ports.AnalysisRepository
	Examinations ports.ExaminationRepository
	Runs         ports.AnalysisRunRepository
	Servers      ports.ArchiveServerRepository
	Categories   ports.CategoryRepository
	Incidents    ports.IncidentRepository
}

func provideRepositories(p repositoryParams) rejectrate.Repositories {
	return rejectrate.Repositories{
		Analyses:     p.Analyses,
		Examinations: p.Examinations,
		Runs:         p.Runs,
		Servers:      p.Servers,
		Categories:   p.Categories,
		Incidents:    p.Incidents,
	}
}

func provideRejectRateService(
	cfg config.Config,
	repos rejectrate.Repositories,
	uow ports.UnitOfWork,
	archiveClient ports.ArchiveClient,
	cache ports.Cache,
) *rejectrate.Service {
	return rejectrate.NewService(repos, uow, archiveClient, cache, rejectrate.Options{
		TargetRate:         cfg.Analysis.TargetRate,
		MaxConcurrent:      cfg.Archive.MaxConcurrent,
		ComputationTimeout: cfg.Analysis.ComputationTimeout,
		CacheTTL:           cfg.Cache.TTL,
		TrendWindow:        cfg.Analysis.TrendWindow,
		StableThreshold:    cfg.Analysis.StableThreshold,
	})
}
