// Package config loads the application configuration from config.yaml
// and the environment, and installs the global logger.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raumwerk/standort-cli/internal/fetch"
	"github.com/raumwerk/standort-cli/internal/resilience"
	"github.com/raumwerk/standort-cli/internal/store"
	"github.com/raumwerk/standort-cli/pkg/overpass"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history and geo cache backend.
type StoreConfig struct {
	// Driver selects the backend: sqlite or postgres.
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`

	// CacheLookups persists geo lookup results between runs.
	CacheLookups bool `yaml:"cache_lookups" mapstructure:"cache_lookups"`
}

// DatasetsConfig configures the federal dataset downloads and readers.
type DatasetsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`

	Transit DatasetConfig `yaml:"transit" mapstructure:"transit"`
	Stops   DatasetConfig `yaml:"stops" mapstructure:"stops"`
}

// DatasetConfig describes one dataset: where to fetch it from and how to
// read the local copy.
type DatasetConfig struct {
	URL  string `yaml:"url" mapstructure:"url"`
	File string `yaml:"file" mapstructure:"file"`

	// Encoding names the charset of a CSV file. Empty means UTF-8.
	Encoding string `yaml:"encoding" mapstructure:"encoding"`

	// NameField is the attribute carrying the stop name when File is a
	// shapefile.
	NameField string `yaml:"name_field" mapstructure:"name_field"`
}

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	RateRPS         float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	MotorwayRadiusM int     `yaml:"motorway_radius_m" mapstructure:"motorway_radius_m"`
	ParkingRadiusM  int     `yaml:"parking_radius_m" mapstructure:"parking_radius_m"`

	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig holds the retry knobs for Overpass queries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BreakerConfig holds the circuit breaker knobs for the Overpass client.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STANDORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "standort.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("store.cache_lookups", true)
	v.SetDefault("datasets.dir", "data")
	v.SetDefault("datasets.user_agent", "standort-cli/1.0")
	v.SetDefault("datasets.timeout_secs", 30)
	v.SetDefault("datasets.max_retries", 3)
	v.SetDefault("datasets.transit.url", "https://data.geo.admin.ch/ch.are.gueteklassen/oev_gueteklassen_gemeinden.csv")
	v.SetDefault("datasets.transit.file", "oev_gueteklassen_gemeinden.csv")
	v.SetDefault("datasets.transit.encoding", "iso-8859-1")
	v.SetDefault("datasets.stops.url", "https://data.opentransportdata.swiss/dataset/betriebspunkte/betriebspunkte.csv")
	v.SetDefault("datasets.stops.file", "betriebspunkte.csv")
	v.SetDefault("datasets.stops.name_field", "NAME")
	v.SetDefault("overpass.base_url", overpass.DefaultBaseURL)
	v.SetDefault("overpass.rate_rps", 1.0)
	v.SetDefault("overpass.motorway_radius_m", 20000)
	v.SetDefault("overpass.parking_radius_m", 1000)
	v.SetDefault("overpass.retry.max_attempts", 3)
	v.SetDefault("overpass.retry.initial_backoff_ms", 500)
	v.SetDefault("overpass.retry.max_backoff_ms", 30000)
	v.SetDefault("overpass.retry.multiplier", 2.0)
	v.SetDefault("overpass.retry.jitter_fraction", 0.25)
	v.SetDefault("overpass.breaker.failure_threshold", 5)
	v.SetDefault("overpass.breaker.reset_timeout_secs", 30)
	v.SetDefault("batch.concurrency", 4)
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

// Validate checks the configuration for the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "score":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 16 {
			problems = append(problems, "batch.concurrency must be between 1 and 16")
		}
		if c.Overpass.RateRPS <= 0 {
			problems = append(problems, "overpass.rate_rps must be > 0")
		}
		problems = append(problems, c.storeProblems()...)
	case "datasets":
		if c.Datasets.Dir == "" {
			problems = append(problems, "datasets.dir is required")
		}
	case "runs":
		problems = append(problems, c.storeProblems()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return []string{"store.path is required for the sqlite driver"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres driver"}
		}
	default:
		return []string{fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)}
	}
	return nil
}

// TransitPath returns the local path of the transit quality table.
func (d DatasetsConfig) TransitPath() string {
	return filepath.Join(d.Dir, d.Transit.File)
}

// StopsPath returns the local path of the stop registry.
func (d DatasetsConfig) StopsPath() string {
	return filepath.Join(d.Dir, d.Stops.File)
}

// All returns the configured datasets in sync order.
func (d DatasetsConfig) All() []fetch.Dataset {
	return []fetch.Dataset{
		{Name: "transit", URL: d.Transit.URL, File: d.Transit.File},
		{Name: "stops", URL: d.Stops.URL, File: d.Stops.File},
	}
}

// HTTPOptions translates the datasets section into fetcher options.
func (d DatasetsConfig) HTTPOptions() fetch.HTTPOptions {
	return fetch.HTTPOptions{
		UserAgent:  d.UserAgent,
		Timeout:    time.Duration(d.TimeoutSecs) * time.Second,
		MaxRetries: d.MaxRetries,
	}
}

// FTPOptions translates the datasets section into FTP fetcher options.
func (d DatasetsConfig) FTPOptions() fetch.FTPOptions {
	return fetch.FTPOptions{
		Timeout: time.Duration(d.TimeoutSecs) * time.Second,
	}
}

// RetryPolicy translates the retry section for the Overpass client.
func (o OverpassConfig) RetryPolicy() resilience.RetryConfig {
	return resilience.FromRetryConfig(
		o.Retry.MaxAttempts,
		o.Retry.InitialBackoffMs,
		o.Retry.MaxBackoffMs,
		o.Retry.Multiplier,
		o.Retry.JitterFraction,
	)
}

// BreakerPolicy translates the breaker section for the Overpass lookups.
func (o OverpassConfig) BreakerPolicy() resilience.CircuitBreakerConfig {
	return resilience.FromCircuitConfig(o.Breaker.FailureThreshold, o.Breaker.ResetTimeoutSecs)
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
