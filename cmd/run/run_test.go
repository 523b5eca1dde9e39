package run

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/cmd"
	"github.com/batchlane/batchlane/cmd/util"
	"github.com/batchlane/batchlane/internal/config"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/stages"
	"github.com/batchlane/batchlane/pkg/storage/migrate"
	"github.com/batchlane/batchlane/pkg/storage/sqlcommon"
	"github.com/batchlane/batchlane/pkg/storage/sqlite"
)

const linesConfig = `log:
  level: none
metrics:
  enabled: false
pipelines:
  - name: lines
    stages:
      - name: read
        kind: devsource
        outputs: [raw]
        options:
          lines:
            - '{"id": 1, "amount": 250}'
            - '{"id": 2, "amount": 20}'
            - '{"id": 3, "amount": 90}'
      - name: route
        kind: selector
        inputs: [raw]
        outputs: [big, small]
        options:
          default: small
          rules:
            - lane: big
              when: record.amount >= 100
`

func linesPipeline() pipeline.Definition {
	return pipeline.Definition{
		Name: "lines",
		Stages: []pipeline.StageDefinition{
			{
				Name:    "read",
				Kind:    "devsource",
				Outputs: []string{"raw"},
				Options: map[string]any{"lines": []any{`{"id": 1}`, `{"id": 2}`, `{"id": 3}`}},
			},
			{Name: "pass", Kind: "identity", Inputs: []string{"raw"}, Outputs: []string{"out"}},
		},
	}
}

func testConfig(defs ...pipeline.Definition) *config.Config {
	cfg := config.MustDefaultConfig()
	cfg.Log.Level = "none"
	cfg.Pipelines = defs
	return cfg
}

func newRunContext(t *testing.T) (*RunContext, logger.Logs, *bytes.Buffer) {
	t.Helper()

	l, logs := logger.NewObserverLogger("debug")
	var out bytes.Buffer
	return &RunContext{Logger: l, Registry: stages.NewRegistry(), Out: &out}, logs, &out
}

func TestRunCommandNoConfigDefaultValues(t *testing.T) {
	viper.Reset()
	util.PrepareTempConfigDir(t)

	runCmd := NewRunCommand()
	runCmd.RunE = func(_ *cobra.Command, _ []string) error {
		require.Equal(t, "memory", viper.GetString("datastore.engine"))
		require.Equal(t, "info", viper.GetString("log.level"))
		require.Equal(t, "stop", viper.GetString("runner.errorPolicy"))
		require.Equal(t, config.DefaultBatchSize, viper.GetInt("runner.batchSize"))
		require.Equal(t, config.DefaultConcurrency, viper.GetInt("runner.concurrency"))
		require.False(t, viper.GetBool("runner.preview"))
		require.True(t, viper.GetBool("metrics.enabled"))
		return nil
	}

	root := cmd.NewRootCommand()
	root.AddCommand(runCmd)
	root.SetArgs([]string{"run"})
	require.NoError(t, root.Execute())
}

func TestRunCommandFlagsAndEnv(t *testing.T) {
	viper.Reset()
	util.PrepareTempConfigDir(t)

	t.Setenv("BATCHLANE_RUNNER_ERROR_POLICY", "retry")
	t.Setenv("BATCHLANE_LOCALE", "pt-BR")

	runCmd := NewRunCommand()
	runCmd.RunE = func(_ *cobra.Command, args []string) error {
		cfg, err := ReadConfig()
		require.NoError(t, err)
		require.Equal(t, "retry", cfg.Runner.ErrorPolicy)
		require.Equal(t, "pt-BR", cfg.Localization.Locale)
		require.Equal(t, 7, cfg.Runner.MaxBatches)
		require.Equal(t, 30*time.Second, cfg.Runner.RetryMaxElapsed)
		require.Equal(t, []string{"a", "b"}, args)
		return nil
	}

	root := cmd.NewRootCommand()
	root.AddCommand(runCmd)
	root.SetArgs([]string{"run", "a", "b", "--max-batches", "7", "--retry-max-elapsed", "30s"})
	require.NoError(t, root.Execute())
}

func TestReadConfigParsesPipelines(t *testing.T) {
	viper.Reset()
	util.PrepareTempConfigFile(t, linesConfig)

	runCmd := NewRunCommand()
	runCmd.RunE = func(_ *cobra.Command, _ []string) error {
		cfg, err := ReadConfig()
		require.NoError(t, err)
		require.NoError(t, cfg.Verify())
		require.False(t, cfg.Metrics.Enabled)
		require.Len(t, cfg.Pipelines, 1)

		p := cfg.Pipelines[0]
		require.Equal(t, "lines", p.Name)
		require.Len(t, p.Stages, 2)
		require.Equal(t, "devsource", p.Stages[0].Kind)
		require.Equal(t, []string{"raw"}, p.Stages[0].Outputs)
		require.Equal(t, []string{"big", "small"}, p.Stages[1].Outputs)
		require.Equal(t, "small", p.Stages[1].Options["default"])
		return nil
	}

	root := cmd.NewRootCommand()
	root.AddCommand(runCmd)
	root.SetArgs([]string{"run"})
	require.NoError(t, root.Execute())
}

func TestRunCommandPreview(t *testing.T) {
	viper.Reset()
	util.PrepareTempConfigFile(t, linesConfig)

	var out bytes.Buffer
	root := cmd.NewRootCommand()
	root.AddCommand(NewRunCommand())
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--preview"})
	require.NoError(t, root.Execute())

	lanes := map[string]int{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var line previewLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		require.Equal(t, "lines", line.Pipeline)
		require.Equal(t, []string{"route"}, line.Stages)
		lanes[line.Lane]++
	}
	require.Equal(t, map[string]int{"big": 1, "small": 2}, lanes)
}

func TestRunCommandInvalidConfig(t *testing.T) {
	viper.Reset()
	util.PrepareTempConfigDir(t)

	root := cmd.NewRootCommand()
	root.AddCommand(NewRunCommand())
	root.SetArgs([]string{"run", "--error-policy", "ignore"})
	root.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, root.Execute(), "config 'runner.errorPolicy'")
}

func TestRunCommitsOffsets(t *testing.T) {
	uri := filepath.Join(t.TempDir(), "offsets.db")
	require.NoError(t, migrate.RunMigrations(context.Background(), migrate.MigrationConfig{
		Engine:  "sqlite",
		URI:     uri,
		Timeout: 5 * time.Second,
	}))

	cfg := testConfig(linesPipeline())
	cfg.Datastore.Engine = "sqlite"
	cfg.Datastore.URI = uri
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Runner.BatchSize = 2
	require.NoError(t, cfg.Verify())

	runCtx, logs, _ := newRunContext(t)
	require.NoError(t, runCtx.Run(context.Background(), cfg, nil))
	require.Equal(t, 1, logs.FilterMessage("all pipelines done").Len())

	ds, err := sqlite.New(uri, sqlcommon.NewConfig())
	require.NoError(t, err)
	defer ds.Close()

	commits, err := ds.ListCommits(context.Background(), "lines", 0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, "3", commits[0].BatchID)
	require.Equal(t, "2", commits[1].BatchID)
}

func TestRunRequiresMigratedDatastore(t *testing.T) {
	cfg := testConfig(linesPipeline())
	cfg.Datastore.Engine = "sqlite"
	cfg.Datastore.URI = filepath.Join(t.TempDir(), "empty.db")

	runCtx, _, _ := newRunContext(t)
	err := runCtx.Run(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestRunSelectsPipelines(t *testing.T) {
	other := linesPipeline()
	other.Name = "other"

	runCtx, _, out := newRunContext(t)
	cfg := testConfig(linesPipeline(), other)
	cfg.Runner.Preview = true

	require.NoError(t, runCtx.Run(context.Background(), cfg, []string{"other"}))
	require.Contains(t, out.String(), `"pipeline":"other"`)
	require.NotContains(t, out.String(), `"pipeline":"lines"`)

	err := runCtx.Run(context.Background(), cfg, []string{"missing"})
	require.EqualError(t, err, "pipeline 'missing' is not configured")

	err = runCtx.Run(context.Background(), testConfig(), nil)
	require.ErrorIs(t, err, ErrNoPipelines)
}

func TestRunLogsLocalizedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(pipeline.Definition{
		Name: "remote",
		Stages: []pipeline.StageDefinition{
			{
				Name:    "fetch",
				Kind:    "httpsource",
				Outputs: []string{"raw"},
				Options: map[string]any{"url": srv.URL, "retry_max": -1},
			},
		},
	})
	cfg.Localization.Locale = "pt-BR"

	runCtx, logs, _ := newRunContext(t)
	err := runCtx.Run(context.Background(), cfg, nil)
	require.ErrorContains(t, err, `pipeline "remote"`)

	failures := logs.FilterMessage("pipeline run failed").All()
	require.Len(t, failures, 1)
	require.Contains(t, failures[0].ContextMap()["message"], "o estágio 'fetch' falhou")
}

func TestRunRejectsInvalidPipeline(t *testing.T) {
	def := linesPipeline()
	def.Stages = append(def.Stages, pipeline.StageDefinition{Name: "pass", Kind: "identity", Inputs: []string{"out"}, Outputs: []string{"again"}})

	runCtx, logs, _ := newRunContext(t)
	err := runCtx.Run(context.Background(), testConfig(def), nil)
	require.Error(t, err)
	require.Equal(t, 1, logs.FilterMessage("invalid pipeline").Len())
}

func TestWithBatchSize(t *testing.T) {
	def := pipeline.Definition{
		Name: "p",
		Stages: []pipeline.StageDefinition{
			{Name: "a", Kind: "devsource"},
			{Name: "b", Kind: "httpsource", Options: map[string]any{"batch_size": 5}},
			{Name: "c", Kind: "identity"},
		},
	}

	got := withBatchSize(def, 50)
	require.Equal(t, 50, got.Stages[0].Options["batch_size"])
	require.Equal(t, 5, got.Stages[1].Options["batch_size"])
	require.Nil(t, got.Stages[2].Options)
	require.Nil(t, def.Stages[0].Options)
}
