// Package run contains the command to run batchlane pipelines.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/batchlane/batchlane/cmd/util"
	"github.com/batchlane/batchlane/internal/config"
	"github.com/batchlane/batchlane/pkg/localize"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/runner"
	"github.com/batchlane/batchlane/pkg/stages"
	"github.com/batchlane/batchlane/pkg/stages/devsource"
	"github.com/batchlane/batchlane/pkg/stages/httpsource"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/telemetry"
)

// ErrNoPipelines is returned when there is nothing to run.
var ErrNoPipelines = errors.New("no pipelines configured")

const batchSizeOption = "batch_size"

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [pipeline...]",
		Short: "Run the configured pipelines",
		Long: `Run the pipelines declared in config.yaml. With no arguments every pipeline runs;
otherwise only the named ones do.`,
		RunE: run,
	}

	bindRunFlags(cmd)

	return cmd
}

// ReadConfig returns the batchlane configuration based on the values provided in the 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/batchlane', '$HOME/.batchlane', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load batchlane config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batchlane config: %w", err)
	}

	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	l, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level, cfg.Log.TimestampFormat)
	if err != nil {
		return err
	}

	runCtx := &RunContext{
		Logger:   l,
		Registry: stages.NewRegistry(),
		Out:      cmd.OutOrStdout(),
	}
	return runCtx.Run(cmd.Context(), cfg, args)
}

// RunContext holds what a run shares across pipelines.
type RunContext struct {
	Logger   logger.Logger
	Registry *pipeline.Registry

	// Out receives the records of a preview run.
	Out io.Writer
}

// Run executes the pipelines named in names, or all of them when names is empty.
func (s *RunContext) Run(ctx context.Context, cfg *config.Config, names []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lc := localize.Context{
		Bundle: cfg.Localization.Bundle,
		Locale: localize.MustParseLocale(cfg.Localization.Locale),
	}

	tp := s.telemetryConfig(cfg)
	defer func() {
		// can take up to 5 seconds to flush the batch span processor
		closeCtx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
		defer cancel()
		if err := tp.Close(closeCtx); err != nil {
			s.Logger.Warn("failed to close the tracer provider", zap.Error(err))
		}
	}()

	defs, err := selectPipelines(cfg, names)
	if err != nil {
		return err
	}

	store, err := util.OpenDatastore(cfg.Datastore, s.Logger)
	if err != nil {
		return err
	}
	defer store.Close()
	s.Logger.Info(fmt.Sprintf("using '%v' storage engine", cfg.Datastore.Engine))

	status, err := store.IsReady(ctx)
	if err != nil {
		return fmt.Errorf("datastore readiness check: %w", err)
	}
	if !status.IsReady {
		return fmt.Errorf("datastore is not ready: %s", status.Message)
	}

	runners, err := s.buildRunners(cfg, defs, store)
	if err != nil {
		s.Logger.Error("invalid pipeline", zap.String("message", message(err, lc)))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", otelhttp.NewHandler(promhttp.Handler(), "metrics"))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			s.Logger.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start prometheus metrics server: %w", err)
			}
			s.Logger.Info("metrics server shut down.")
			return nil
		})
	}

	g.Go(func() error {
		if metricsServer != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					s.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
				}
			}()
		}

		if cfg.Runner.Preview {
			return s.preview(gctx, runners)
		}
		return runner.RunAll(gctx, runners, cfg.Runner.MaxBatches, cfg.Runner.Concurrency)
	})

	if err := g.Wait(); err != nil {
		s.Logger.Error("pipeline run failed", zap.String("message", message(err, lc)), zap.Error(err))
		return err
	}

	s.Logger.Info("all pipelines done")
	return nil
}

// telemetryConfig returns the tracer provider that must be closed to flush spans.
func (s *RunContext) telemetryConfig(cfg *config.Config) telemetry.TracerProvider {
	if !cfg.Trace.Enabled {
		return telemetry.Noop()
	}

	s.Logger.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s'", cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint))

	return telemetry.MustNewTracerProvider(
		telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
		telemetry.WithServiceName(cfg.Trace.ServiceName),
		telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		telemetry.WithSlowBatchThreshold(cfg.Trace.SlowBatchThreshold),
	)
}

func (s *RunContext) buildRunners(cfg *config.Config, defs []pipeline.Definition, store storage.OffsetStore) ([]*runner.Runner, error) {
	// Verify has already parsed the policy.
	policy, _ := runner.ParseErrorPolicy(cfg.Runner.ErrorPolicy)

	runners := make([]*runner.Runner, 0, len(defs))
	for _, def := range defs {
		r, err := pipeline.NewRunner(s.Registry, withBatchSize(def, cfg.Runner.BatchSize),
			runner.WithStore(store),
			runner.WithLogger(s.Logger),
			runner.WithPreview(cfg.Runner.Preview),
			runner.WithErrorPolicy(policy),
			runner.WithRetry(cfg.Runner.RetryInitialInterval, cfg.Runner.RetryMaxElapsed),
		)
		if err != nil {
			return nil, err
		}
		runners = append(runners, r)
	}
	return runners, nil
}

type previewLine struct {
	Pipeline string         `json:"pipeline"`
	Lane     string         `json:"lane"`
	SourceID string         `json:"source_id"`
	Stages   []string       `json:"stages_path"`
	Fields   map[string]any `json:"fields"`
	Payload  string         `json:"payload,omitempty"`
}

// preview runs one batch of every runner, one after the other, and writes the
// records on the terminal lanes to s.Out as JSON lines.
func (s *RunContext) preview(ctx context.Context, runners []*runner.Runner) error {
	enc := json.NewEncoder(s.Out)
	for _, r := range runners {
		res, err := r.RunBatch(ctx)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", r.Name(), err)
		}

		for _, l := range slices.Sorted(maps.Keys(res.Output)) {
			for _, rec := range res.Output[l] {
				h := rec.Header()
				line := previewLine{
					Pipeline: r.Name(),
					Lane:     l,
					SourceID: h.SourceID,
					Stages:   h.StagesPath,
					Fields:   rec.Fields(),
					Payload:  string(rec.Payload()),
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
		}
		s.Logger.Info("preview done", zap.String("pipeline", r.Name()), zap.Int("records", res.Len()))
	}
	return nil
}

func selectPipelines(cfg *config.Config, names []string) ([]pipeline.Definition, error) {
	if len(names) == 0 {
		if len(cfg.Pipelines) == 0 {
			return nil, ErrNoPipelines
		}
		return cfg.Pipelines, nil
	}

	defs := make([]pipeline.Definition, 0, len(names))
	for _, name := range names {
		def, ok := cfg.Pipeline(name)
		if !ok {
			return nil, fmt.Errorf("pipeline '%s' is not configured", name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// withBatchSize hands size to the built-in sources of def that do not set
// their own batch size.
func withBatchSize(def pipeline.Definition, size int) pipeline.Definition {
	stages := slices.Clone(def.Stages)
	for i, sd := range stages {
		if sd.Kind != devsource.Kind && sd.Kind != httpsource.Kind {
			continue
		}
		if _, ok := sd.Options[batchSizeOption]; ok {
			continue
		}
		opts := maps.Clone(sd.Options)
		if opts == nil {
			opts = map[string]any{}
		}
		opts[batchSizeOption] = size
		stages[i].Options = opts
	}
	def.Stages = stages
	return def
}

type localizedError interface {
	Message(reg *localize.Registry, lc localize.Context) string
}

// message renders err in the configured locale when it carries a localized message.
func message(err error, lc localize.Context) string {
	var le localizedError
	if errors.As(err, &le) {
		return le.Message(localize.Default(), lc)
	}
	return err.Error()
}
