package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/booking-risk/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Models ModelsConfig `yaml:"models" mapstructure:"models"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`

	store.PoolConfig `yaml:",inline" mapstructure:",squash"`
}

// ModelsConfig locates the model artifacts.
type ModelsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// IngestConfig configures normalization and persistence of uploads.
type IngestConfig struct {
	RequiredColumns []string `yaml:"required_columns" mapstructure:"required_columns"`
	Dedupe          string   `yaml:"dedupe" mapstructure:"dedupe"`
	MaxUploadMB     int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// FetchConfig configures downloads of remote sources.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the per-request timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheConfig configures the Redis view cache.
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLSecs       int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment. Variables
// already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BOOKING_RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bookings.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_timeout_secs", 30)
	v.SetDefault("models.dir", "artifacts/models")
	v.SetDefault("ingest.required_columns", []string{})
	v.SetDefault("ingest.dedupe", string(store.DedupeNone))
	v.SetDefault("ingest.max_upload_mb", 16)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "booking-risk/1.0")
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validation modes, one per command family.
const (
	ModeServe   = "serve"
	ModeIngest  = "ingest"
	ModeQuery   = "query"
	ModePredict = "predict"
)

// Validate checks the settings a command family depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := false
	switch mode {
	case ModeServe:
		needStore = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Ingest.MaxUploadMB <= 0 {
			errs = append(errs, "ingest.max_upload_mb must be > 0")
		}
		if c.Cache.Enabled {
			if c.Cache.RedisAddr == "" {
				errs = append(errs, "cache.redis_addr is required when cache.enabled")
			}
			if c.Cache.TTLSecs <= 0 {
				errs = append(errs, "cache.ttl_secs must be > 0")
			}
		}
		errs = append(errs, c.validateModels()...)
		errs = append(errs, c.validateIngest()...)
	case ModeIngest:
		needStore = true
		errs = append(errs, c.validateModels()...)
		errs = append(errs, c.validateIngest()...)
		if c.Fetch.TimeoutSecs <= 0 {
			errs = append(errs, "fetch.timeout_secs must be > 0")
		}
		if c.Fetch.MaxRetries < 0 {
			errs = append(errs, "fetch.max_retries must be >= 0")
		}
		if c.Fetch.RatePerSec <= 0 {
			errs = append(errs, "fetch.rate_per_sec must be > 0")
		}
	case ModeQuery:
		needStore = true
	case ModePredict:
		errs = append(errs, c.validateModels()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needStore {
		errs = append(errs, c.validateStore()...)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.Driver == "postgres" {
		if c.Store.MaxConns <= 0 {
			errs = append(errs, "store.max_conns must be > 0")
		}
		if c.Store.MinConns < 0 || c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must be between 0 and store.max_conns")
		}
		if c.Store.ConnectTimeoutSecs <= 0 {
			errs = append(errs, "store.connect_timeout_secs must be > 0")
		}
	}
	return errs
}

func (c *Config) validateModels() []string {
	if c.Models.Dir == "" {
		return []string{"models.dir is required"}
	}
	return nil
}

func (c *Config) validateIngest() []string {
	if _, err := store.ParseDedupeMode(c.Ingest.Dedupe); err != nil {
		return []string{fmt.Sprintf("ingest.dedupe must be none, skip or replace, got %q", c.Ingest.Dedupe)}
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
