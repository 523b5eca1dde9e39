// Package config contains all knobs and defaults used to configure batchlane
// when running pipelines from the command line.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/batchlane/batchlane/pkg/localize"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/runner"
)

const (
	DefaultBatchSize            = 100
	DefaultMaxBatches           = 0
	DefaultConcurrency          = 4
	DefaultRetryMaxElapsed      = runner.DefaultRetryMaxElapsed
	DefaultRetryInitialInterval = runner.DefaultRetryInitialInterval
	DefaultLocale               = "root"
)

var (
	logFormats          = []string{"text", "json"}
	logLevels           = []string{"none", "debug", "info", "warn", "error", "panic", "fatal"}
	logTimestampFormats = []string{"Unix", "ISO8601"}
	datastoreEngines    = []string{"memory", "sqlite", "postgres", "mysql"}
)

type DatastoreMetricsConfig struct {
	// Enabled enables export of the Datastore metrics.
	Enabled bool
}

// DatastoreConfig selects and tunes the offset store.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'sqlite', 'postgres', 'mysql')
	Engine   string
	URI      string
	Username string
	Password string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	Metrics DatastoreMetricsConfig
}

// LogConfig defines log settings. For production we recommend using the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string

	// SlowBatchThreshold exports only the batches slower than this. Zero exports all.
	SlowBatchThreshold time.Duration
}

type OTLPTraceConfig struct {
	Endpoint string
}

// MetricConfig defines where the prometheus metrics are served.
type MetricConfig struct {
	Enabled bool
	Addr    string
}

// LocalizationConfig selects the language of error messages.
type LocalizationConfig struct {
	// Locale is a BCP 47 tag, e.g. 'pt-BR'. 'root' selects the default messages.
	Locale string
	// Bundle is consulted when the bundle an error belongs to lacks a message.
	Bundle string
}

// RunnerConfig defines how batches are executed.
type RunnerConfig struct {
	// BatchSize is handed to sources that do not set their own.
	BatchSize int

	// MaxBatches stops a pipeline after that many committed batches. Zero runs until
	// the sources are exhausted.
	MaxBatches int

	// Preview runs a single batch per pipeline without committing offsets.
	Preview bool

	// ErrorPolicy is one of 'stop', 'skip' or 'retry'.
	ErrorPolicy string

	RetryInitialInterval time.Duration
	RetryMaxElapsed      time.Duration

	// Concurrency is the number of pipelines run at once.
	Concurrency int
}

type Config struct {
	Datastore    DatastoreConfig
	Log          LogConfig
	Trace        TraceConfig
	Metrics      MetricConfig
	Localization LocalizationConfig
	Runner       RunnerConfig

	Pipelines []pipeline.Definition `mapstructure:"pipelines"`
}

func (cfg *Config) Verify() error {
	if !slices.Contains(logFormats, cfg.Log.Format) {
		return fmt.Errorf("config 'log.format' must be one of %q", logFormats)
	}

	if !slices.Contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf("config 'log.level' must be one of %q", logLevels)
	}

	if !slices.Contains(logTimestampFormats, cfg.Log.TimestampFormat) {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of %q", logTimestampFormats)
	}

	if !slices.Contains(datastoreEngines, cfg.Datastore.Engine) {
		return fmt.Errorf("config 'datastore.engine' must be one of %q", datastoreEngines)
	}
	if cfg.Datastore.Engine != "memory" && cfg.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' is required for the '%s' engine", cfg.Datastore.Engine)
	}

	if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	if _, err := localize.ParseLocale(cfg.Localization.Locale); err != nil {
		return fmt.Errorf("config 'localization.locale' is not a valid BCP 47 tag: %w", err)
	}

	policy, err := runner.ParseErrorPolicy(cfg.Runner.ErrorPolicy)
	if err != nil {
		return fmt.Errorf("config 'runner.errorPolicy': %w", err)
	}
	if policy == runner.OnErrorRetry && (cfg.Runner.RetryInitialInterval <= 0 || cfg.Runner.RetryMaxElapsed <= 0) {
		return errors.New("config 'runner.retryInitialInterval' and 'runner.retryMaxElapsed' must be positive durations")
	}

	if cfg.Runner.Concurrency < 1 {
		return errors.New("config 'runner.concurrency' must be at least 1")
	}
	if cfg.Runner.MaxBatches < 0 {
		return errors.New("config 'runner.maxBatches' must not be negative")
	}
	if cfg.Runner.BatchSize < 1 {
		return errors.New("config 'runner.batchSize' must be at least 1")
	}

	seen := map[string]struct{}{}
	for _, p := range cfg.Pipelines {
		if p.Name == "" {
			return errors.New("every pipeline needs a name")
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("pipeline '%s' is defined more than once", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	return nil
}

// Pipeline returns the definition named name.
func (cfg *Config) Pipeline(name string) (pipeline.Definition, bool) {
	i := slices.IndexFunc(cfg.Pipelines, func(p pipeline.Definition) bool { return p.Name == name })
	if i < 0 {
		return pipeline.Definition{}, false
	}
	return cfg.Pipelines[i], true
}

// DefaultConfig is the batchlane default configuration.
func DefaultConfig() *Config {
	return &Config{
		Datastore: DatastoreConfig{
			Engine:       "memory",
			MaxIdleConns: 10,
			MaxOpenConns: 30,
		},
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio: 0.2,
			ServiceName: "batchlane",
		},
		Metrics: MetricConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
		Localization: LocalizationConfig{
			Locale: DefaultLocale,
		},
		Runner: RunnerConfig{
			BatchSize:            DefaultBatchSize,
			MaxBatches:           DefaultMaxBatches,
			ErrorPolicy:          string(runner.OnErrorStop),
			RetryInitialInterval: DefaultRetryInitialInterval,
			RetryMaxElapsed:      DefaultRetryMaxElapsed,
			Concurrency:          DefaultConcurrency,
		},
		Pipelines: []pipeline.Definition{},
	}
}

// MustDefaultConfig returns the default config with metrics turned off.
func MustDefaultConfig() *Config {
	config := DefaultConfig()
	config.Metrics.Enabled = false
	return config
}
