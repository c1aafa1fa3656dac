package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/errs"
)

const envPrefix = "RR"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ArchiveConfig struct {
	// ServersFile is the TOML registry synced by `servers sync`.
	ServersFile          string        `mapstructure:"servers_file"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxConcurrent        int           `mapstructure:"max_concurrent"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
}

type AnalysisConfig struct {
	TargetRate         float64       `mapstructure:"target_rate"`
	ComputationTimeout time.Duration `mapstructure:"computation_timeout"`
	TrendWindow        int           `mapstructure:"trend_window"`
	StableThreshold    float64       `mapstructure:"stable_threshold"`
}

type CacheConfig struct {
	Driver    string        `mapstructure:"driver"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type ScheduleConfig struct {
	Cron       string   `mapstructure:"cron"`
	Modalities []string `mapstructure:"modalities"`
	Actor      string   `mapstructure:"actor"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, errs.Wrap(err, "load .env")
		}
	} else {
		logging.Info(logCtx, "loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return Config{}, errs.Wrap(err, "apply log level")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.Int("archive_max_concurrent", cfg.Archive.MaxConcurrent),
	)

	return cfg, nil
}

// Validate checks the ranges the engine relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Archive.MaxConcurrent < 1 || c.Archive.MaxConcurrent > 8 {
		return fmt.Errorf("archive.max_concurrent must be between 1 and 8, got %d", c.Archive.MaxConcurrent)
	}
	if c.Archive.Timeout <= 0 {
		return errors.New("archive.timeout must be positive")
	}
	if c.Archive.MaxRetries < 0 {
		return errors.New("archive.max_retries must be >= 0")
	}
	if c.Analysis.TargetRate < 0 || c.Analysis.TargetRate > 100 {
		return fmt.Errorf("analysis.target_rate must be between 0 and 100, got %.2f", c.Analysis.TargetRate)
	}
	if c.Analysis.TrendWindow < 1 {
		return errors.New("analysis.trend_window must be >= 1")
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "", "none", "sqlite":
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "radreject")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/radreject.sqlite")

	v.SetDefault("archive.servers_file", "configs/archives.toml")
	v.SetDefault("archive.timeout", 20*time.Second)
	v.SetDefault("archive.max_concurrent", 4)
	v.SetDefault("archive.max_retries", 2)
	v.SetDefault("archive.retry_initial_interval", 500*time.Millisecond)

	v.SetDefault("analysis.target_rate", 8.00)
	v.SetDefault("analysis.computation_timeout", 10*time.Minute)
	v.SetDefault("analysis.trend_window", 3)
	v.SetDefault("analysis.stable_threshold", 5.0)

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", 30*24*time.Hour)

	v.SetDefault("schedule.cron", "0 2 1 * *")
	v.SetDefault("schedule.modalities", []string{"CR", "DX"})
	v.SetDefault("schedule.actor", "scheduler")
}
