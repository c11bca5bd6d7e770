// Package config loads the application configuration from config.yaml, a
// .env file and ITSSAFE_* environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AlissonDuarte/itssafe-backend/internal/api"
	"github.com/AlissonDuarte/itssafe-backend/internal/resilience"
	"github.com/AlissonDuarte/itssafe-backend/internal/service"
	"github.com/AlissonDuarte/itssafe-backend/internal/store"
	"github.com/AlissonDuarte/itssafe-backend/internal/tilecache"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// EnvPrefix prefixes every environment override, e.g. ITSSAFE_STORE_DRIVER.
const EnvPrefix = "ITSSAFE"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Zones      zones.Options     `yaml:"zones" mapstructure:"zones"`
	Service    service.Config    `yaml:"service" mapstructure:"service"`
	API        api.Config        `yaml:"api" mapstructure:"api"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Import     ImportConfig      `yaml:"import" mapstructure:"import"`
	Resilience resilience.Config `yaml:"resilience" mapstructure:"resilience"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the occurrence store.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CacheConfig configures the tile cache levels.
type CacheConfig struct {
	MemoryEntries int                   `yaml:"memory_entries" mapstructure:"memory_entries"` // 0 disables the memory level
	Redis         tilecache.RedisConfig `yaml:"redis" mapstructure:"redis"`                   // empty addr disables Redis
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ImportConfig configures occurrence imports.
type ImportConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Charset     string  `yaml:"charset" mapstructure:"charset"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	zd := zones.DefaultOptions()
	sd := service.DefaultConfig()
	rd := resilience.DefaultRetryConfig()
	bd := resilience.DefaultCircuitBreakerConfig()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)

	v.SetDefault("cache.memory_entries", 5000)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("zones.overlap_threshold", zd.OverlapThreshold)
	v.SetDefault("zones.overlap_mode", string(zd.OverlapMode))
	v.SetDefault("zones.count_policy", string(zd.CountPolicy))
	v.SetDefault("zones.degenerate", string(zd.Degenerate))
	v.SetDefault("zones.buffer_meters", zd.BufferMeters)
	v.SetDefault("zones.simplify_tolerance", zd.SimplifyTolerance)
	v.SetDefault("zones.risk.low_max", zd.Risk.LowMax)
	v.SetDefault("zones.risk.medium_max", zd.Risk.MediumMax)
	v.SetDefault("zones.workers", zd.Workers)

	v.SetDefault("service.grid_size", sd.GridSize)
	v.SetDefault("service.max_viewport_km", sd.MaxViewportKM)
	v.SetDefault("service.max_radius_m", sd.MaxRadiusMeters)
	v.SetDefault("service.eps_km", sd.EpsKM)
	v.SetDefault("service.min_samples", sd.MinSamples)
	v.SetDefault("service.cache_ttl", sd.CacheTTL)
	v.SetDefault("service.load_timeout", sd.LoadTimeout)

	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 40)
	v.SetDefault("api.auth_secret", "")
	v.SetDefault("api.request_timeout", 15*time.Second)
	v.SetDefault("api.trust_proxy", false)

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("import.user_agent", "itssafe-backend/1.0")
	v.SetDefault("import.rate_per_host", 5.0)
	v.SetDefault("import.charset", "")

	v.SetDefault("resilience.max_attempts", rd.MaxAttempts)
	v.SetDefault("resilience.initial_backoff_ms", int(rd.InitialBackoff/time.Millisecond))
	v.SetDefault("resilience.max_backoff_ms", int(rd.MaxBackoff/time.Millisecond))
	v.SetDefault("resilience.failure_threshold", bd.FailureThreshold)
	v.SetDefault("resilience.reset_timeout_secs", int(bd.ResetTimeout/time.Second))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the settings needed by mode: "serve", "import", "migrate"
// or "zones".
func (c *Config) Validate(mode string) error {
	var errs []string

	needsStore := mode == "serve" || mode == "import" || mode == "migrate"
	switch mode {
	case "serve", "import", "migrate", "zones":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
		if c.Store.Pool.MinConns > c.Store.Pool.MaxConns && c.Store.Pool.MaxConns > 0 {
			errs = append(errs, "store.pool.min_conns must not exceed max_conns")
		}
	}

	if mode == "serve" || mode == "zones" {
		if err := c.Zones.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
		if c.Service.MinSamples < 1 {
			errs = append(errs, "service.min_samples must be at least 1")
		}
		if c.Service.EpsKM <= 0 {
			errs = append(errs, "service.eps_km must be positive")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Cache.MemoryEntries < 0 {
			errs = append(errs, "cache.memory_entries must not be negative")
		}
		if c.API.RateLimit < 0 {
			errs = append(errs, "api.rate_limit must not be negative")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
