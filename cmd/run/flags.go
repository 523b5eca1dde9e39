package run

import (
	"github.com/spf13/cobra"

	"github.com/batchlane/batchlane/cmd/util"
	"github.com/batchlane/batchlane/internal/config"
)

// bindRunFlags binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.Flags()

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine that will be used to persist offsets")
	util.MustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))
	util.MustBindEnv("datastore.engine", "BATCHLANE_DATASTORE_ENGINE")

	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	util.MustBindPFlag("datastore.uri", flags.Lookup("datastore-uri"))
	util.MustBindEnv("datastore.uri", "BATCHLANE_DATASTORE_URI")

	flags.String("datastore-username", "", "the connection username to use to connect to the datastore (overwrites any username provided in the connection uri)")
	util.MustBindPFlag("datastore.username", flags.Lookup("datastore-username"))
	util.MustBindEnv("datastore.username", "BATCHLANE_DATASTORE_USERNAME")

	flags.String("datastore-password", "", "the connection password to use to connect to the datastore (overwrites any password provided in the connection uri)")
	util.MustBindPFlag("datastore.password", flags.Lookup("datastore-password"))
	util.MustBindEnv("datastore.password", "BATCHLANE_DATASTORE_PASSWORD")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	util.MustBindPFlag("datastore.maxOpenConns", flags.Lookup("datastore-max-open-conns"))
	util.MustBindEnv("datastore.maxOpenConns", "BATCHLANE_DATASTORE_MAX_OPEN_CONNS", "BATCHLANE_DATASTORE_MAXOPENCONNS")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	util.MustBindPFlag("datastore.maxIdleConns", flags.Lookup("datastore-max-idle-conns"))
	util.MustBindEnv("datastore.maxIdleConns", "BATCHLANE_DATASTORE_MAX_IDLE_CONNS", "BATCHLANE_DATASTORE_MAXIDLECONNS")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	util.MustBindPFlag("datastore.connMaxIdleTime", flags.Lookup("datastore-conn-max-idle-time"))
	util.MustBindEnv("datastore.connMaxIdleTime", "BATCHLANE_DATASTORE_CONN_MAX_IDLE_TIME", "BATCHLANE_DATASTORE_CONNMAXIDLETIME")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	util.MustBindPFlag("datastore.connMaxLifetime", flags.Lookup("datastore-conn-max-lifetime"))
	util.MustBindEnv("datastore.connMaxLifetime", "BATCHLANE_DATASTORE_CONN_MAX_LIFETIME", "BATCHLANE_DATASTORE_CONNMAXLIFETIME")

	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")
	util.MustBindPFlag("datastore.metrics.enabled", flags.Lookup("datastore-metrics-enabled"))
	util.MustBindEnv("datastore.metrics.enabled", "BATCHLANE_DATASTORE_METRICS_ENABLED")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "BATCHLANE_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "BATCHLANE_LOG_LEVEL")

	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages")
	util.MustBindPFlag("log.timestampFormat", flags.Lookup("log-timestamp-format"))
	util.MustBindEnv("log.timestampFormat", "BATCHLANE_LOG_TIMESTAMP_FORMAT")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "BATCHLANE_TRACE_ENABLED")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
	util.MustBindEnv("trace.otlp.endpoint", "BATCHLANE_TRACE_OTLP_ENDPOINT")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sampleRatio", "BATCHLANE_TRACE_SAMPLE_RATIO")

	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces")
	util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
	util.MustBindEnv("trace.serviceName", "BATCHLANE_TRACE_SERVICE_NAME")

	flags.Duration("trace-slow-batch-threshold", defaultConfig.Trace.SlowBatchThreshold, "only export the traces of batches slower than this (0 exports all)")
	util.MustBindPFlag("trace.slowBatchThreshold", flags.Lookup("trace-slow-batch-threshold"))
	util.MustBindEnv("trace.slowBatchThreshold", "BATCHLANE_TRACE_SLOW_BATCH_THRESHOLD")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")
	util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	util.MustBindEnv("metrics.enabled", "BATCHLANE_METRICS_ENABLED")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")
	util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	util.MustBindEnv("metrics.addr", "BATCHLANE_METRICS_ADDR")

	flags.String("locale", defaultConfig.Localization.Locale, "the BCP 47 locale error messages are rendered in")
	util.MustBindPFlag("localization.locale", flags.Lookup("locale"))
	util.MustBindEnv("localization.locale", "BATCHLANE_LOCALIZATION_LOCALE", "BATCHLANE_LOCALE")

	flags.Int("batch-size", defaultConfig.Runner.BatchSize, "the number of records a built-in source reads per batch, unless the stage sets its own")
	util.MustBindPFlag("runner.batchSize", flags.Lookup("batch-size"))
	util.MustBindEnv("runner.batchSize", "BATCHLANE_RUNNER_BATCH_SIZE", "BATCHLANE_RUNNER_BATCHSIZE")

	flags.Int("max-batches", defaultConfig.Runner.MaxBatches, "stop each pipeline after this many batches (0 runs until the sources are exhausted)")
	util.MustBindPFlag("runner.maxBatches", flags.Lookup("max-batches"))
	util.MustBindEnv("runner.maxBatches", "BATCHLANE_RUNNER_MAX_BATCHES", "BATCHLANE_RUNNER_MAXBATCHES")

	flags.Bool("preview", defaultConfig.Runner.Preview, "run one batch per pipeline, print the records that reach the terminal lanes and commit nothing")
	util.MustBindPFlag("runner.preview", flags.Lookup("preview"))
	util.MustBindEnv("runner.preview", "BATCHLANE_RUNNER_PREVIEW")

	flags.String("error-policy", defaultConfig.Runner.ErrorPolicy, "what to do when a stage fails: 'stop', 'skip' or 'retry'")
	util.MustBindPFlag("runner.errorPolicy", flags.Lookup("error-policy"))
	util.MustBindEnv("runner.errorPolicy", "BATCHLANE_RUNNER_ERROR_POLICY", "BATCHLANE_RUNNER_ERRORPOLICY")

	flags.Duration("retry-initial-interval", defaultConfig.Runner.RetryInitialInterval, "the first backoff interval of the 'retry' error policy")
	util.MustBindPFlag("runner.retryInitialInterval", flags.Lookup("retry-initial-interval"))
	util.MustBindEnv("runner.retryInitialInterval", "BATCHLANE_RUNNER_RETRY_INITIAL_INTERVAL")

	flags.Duration("retry-max-elapsed", defaultConfig.Runner.RetryMaxElapsed, "how long the 'retry' error policy keeps re-running a failed batch")
	util.MustBindPFlag("runner.retryMaxElapsed", flags.Lookup("retry-max-elapsed"))
	util.MustBindEnv("runner.retryMaxElapsed", "BATCHLANE_RUNNER_RETRY_MAX_ELAPSED")

	flags.Int("concurrency", defaultConfig.Runner.Concurrency, "the number of pipelines run at the same time")
	util.MustBindPFlag("runner.concurrency", flags.Lookup("concurrency"))
	util.MustBindEnv("runner.concurrency", "BATCHLANE_RUNNER_CONCURRENCY")
}
