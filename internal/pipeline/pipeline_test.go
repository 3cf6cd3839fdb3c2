package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/aggregate"
	"github.com/input-output-hk/report-aggregator/internal/archive"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/pipeline"
	"github.com/input-output-hk/report-aggregator/internal/report"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/test/helpers"
)

func newConfig(t *testing.T) pipeline.Config {
	t.Helper()

	tmpDir := t.TempDir()

	return pipeline.Config{
		ResultsDir:   filepath.Join(tmpDir, "results"),
		AggregateDir: filepath.Join(tmpDir, "aggregated"),
		WebDir:       filepath.Join(tmpDir, "web"),
		TempDir:      tmpDir,
	}
}

// downloaded lays out a fetched results directory, with its results unpacked.
func downloaded(t *testing.T, markerDir string, results map[string]string) {
	t.Helper()

	helpers.WriteFiles(t, filepath.Join(markerDir, "allure-results"), results)
	helpers.WriteFiles(t, markerDir, map[string]string{".downloaded": ""})
}

// downloadedArchive lays out a fetched results directory, with its results compressed.
func downloadedArchive(t *testing.T, markerDir string, results map[string]string) {
	t.Helper()

	files := map[string]string{}
	for name, content := range results {
		files["allure-results/"+name] = content
	}

	helpers.WriteTarXz(t, filepath.Join(markerDir, "allure-results.tar.xz"), files)
	helpers.WriteFiles(t, markerDir, map[string]string{".downloaded": ""})
}

func TestRunPerBuild(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)

	downloadedArchive(t, filepath.Join(cfg.ResultsDir, "nightly", "506"), map[string]string{
		"a-result.json": helpers.ResultJSON(t, "a", "passed", ""),
		"b-result.json": helpers.ResultJSON(t, "b", "passed", ""),
	})
	downloaded(t, filepath.Join(cfg.ResultsDir, "nightly", "507"), map[string]string{
		"c-result.json": helpers.ResultJSON(t, "c", "broken", ""),
	})
	downloaded(t, filepath.Join(cfg.ResultsDir, "upgrade", "12", "step1"), map[string]string{
		"d-result.json": helpers.ResultJSON(t, "d", "passed", ""),
	})
	downloaded(t, filepath.Join(cfg.ResultsDir, "upgrade", "12", "step2"), map[string]string{
		"e-result.json": helpers.ResultJSON(t, "e", "passed", ""),
	})

	// still being downloaded
	helpers.WriteFiles(t, filepath.Join(cfg.ResultsDir, "nightly", "508", "allure-results"), map[string]string{
		"f-result.json": helpers.ResultJSON(t, "f", "passed", ""),
	})

	generator := &helpers.FakeGenerator{}

	rep, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), generator, cfg).Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(cfg.AggregateDir, "upgrade", "step1"),
		filepath.Join(cfg.AggregateDir, "upgrade", "step2"),
		filepath.Join(cfg.AggregateDir, "nightly"),
		filepath.Join(cfg.AggregateDir, "nightly"),
	}, generator.Inputs())

	summary := rep.Summarize()
	assert.Equal(t, 4, summary.UnitsPublished)
	assert.Zero(t, summary.UnitsFailed)

	// the last build replaced the aggregate of the previous one
	aggregated := helpers.ReadTree(t, filepath.Join(cfg.AggregateDir, "nightly"))
	assert.Contains(t, aggregated, "c-result.json")
	assert.NotContains(t, aggregated, "a-result.json")
	assert.Equal(t, "507", aggregated[".last_build"])

	web := helpers.ReadTree(t, filepath.Join(cfg.WebDir, "nightly"))
	assert.JSONEq(t, `{"schemaVersion":1,"label":"","message":"0 passed, 1 failed, 0 broken","color":"red"}`, web["badge.json"])

	assert.FileExists(t, filepath.Join(cfg.WebDir, "upgrade", "step1", "badge.json"))
	assert.FileExists(t, filepath.Join(cfg.WebDir, "upgrade", "step2", "badge.json"))

	for _, dir := range []string{"nightly/506", "nightly/507", "upgrade/12/step1", "upgrade/12/step2"} {
		assert.FileExists(t, filepath.Join(cfg.ResultsDir, dir, ".published"), dir)
	}

	assert.NoFileExists(t, filepath.Join(cfg.ResultsDir, "nightly", "508", ".published"))

	// the scratch trees are gone
	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	assert.ElementsMatch(t, []string{"results", "aggregated", "web"}, names)
}

func TestRunPerBuildKeepsNewerBuild(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)

	older := filepath.Join(cfg.ResultsDir, "nightly", "506")
	newer := filepath.Join(cfg.ResultsDir, "nightly", "507")

	downloaded(t, older, map[string]string{"a-result.json": helpers.ResultJSON(t, "a", "passed", "")})
	downloaded(t, newer, map[string]string{"b-result.json": helpers.ResultJSON(t, "b", "failed", "")})

	_, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), &helpers.FakeGenerator{FailOn: "a-result.json"}, cfg).
		Run(context.Background(), helpers.CreateLogger(t))
	require.ErrorContains(t, err, "generation failed")

	assert.NoFileExists(t, filepath.Join(older, ".published"))
	assert.FileExists(t, filepath.Join(newer, ".published"))

	published := helpers.ReadTree(t, filepath.Join(cfg.WebDir, "nightly"))
	require.Equal(t, "b-result.json", published["index.html"])

	// the retried older build must not replace the report of the newer one
	generator := &helpers.FakeGenerator{}

	rep, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), generator, cfg).Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)

	assert.Empty(t, generator.Inputs())

	summary := rep.Summarize()
	assert.Equal(t, 1, summary.UnitsSkipped)
	assert.Zero(t, summary.UnitsPublished)
	assert.False(t, rep.Failed())

	run, err := rep.GetRun(filepath.Join(cfg.AggregateDir, "nightly", "506"))
	require.NoError(t, err)
	assert.Equal(t, report.ResultSkipped, run.Result)
	require.NotNil(t, run.Reason)
	assert.Equal(t, report.ReasonSuperseded, *run.Reason)

	assert.FileExists(t, filepath.Join(older, ".published"))
	assert.Equal(t, published, helpers.ReadTree(t, filepath.Join(cfg.WebDir, "nightly")))
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)

	downloaded(t, filepath.Join(cfg.ResultsDir, "babbage_dbsync", "abc", "1664632102"), map[string]string{
		"a-result.json": helpers.ResultJSON(t, "a", "passed", ""),
	})

	generator := &helpers.FakeGenerator{}
	p := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), generator, cfg)

	_, err := p.Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)

	published := helpers.ReadTree(t, cfg.WebDir)
	require.Contains(t, published, "babbage_dbsync/abc/badge.json")

	rep, err := p.Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)

	assert.Zero(t, rep.Summarize().TotalUnits())
	assert.Len(t, generator.Inputs(), 1)
	assert.Equal(t, published, helpers.ReadTree(t, cfg.WebDir))
}

func TestRunTestrunAccumulates(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	cfg.Mode = aggregate.ModeTestrun

	// aggregated by a previous run
	helpers.WriteFiles(t, filepath.Join(cfg.AggregateDir, "regression", "rc1"), map[string]string{
		"old-result.json": helpers.ResultJSON(t, "old", "passed", ""),
	})

	downloaded(t, filepath.Join(cfg.ResultsDir, "regression", "rc1", "10"), map[string]string{
		"a-result.json": helpers.ResultJSON(t, "a", "passed", ""),
	})
	downloaded(t, filepath.Join(cfg.ResultsDir, "regression", "rc1", "11"), map[string]string{
		"b-result.json": helpers.ResultJSON(t, "b", "skipped", "XFAIL reason: known issue"),
	})

	generator := &helpers.FakeGenerator{}

	rep, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), generator, cfg).Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(cfg.AggregateDir, "regression", "rc1")}, generator.Inputs())
	assert.Equal(t, 1, rep.Summarize().UnitsPublished)

	web := helpers.ReadTree(t, filepath.Join(cfg.WebDir, "regression", "rc1"))
	assert.JSONEq(t, `{"schemaVersion":1,"label":"","message":"2 passed, 0 failed, 1 broken","color":"green"}`, web["badge.json"])

	assert.FileExists(t, filepath.Join(cfg.ResultsDir, "regression", "rc1", "10", ".published"))
	assert.FileExists(t, filepath.Join(cfg.ResultsDir, "regression", "rc1", "11", ".published"))
}

func TestRunIsolatesFailures(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)

	badDir := filepath.Join(cfg.ResultsDir, "nightly", "506")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "allure-results.tar.xz"), []byte("not xz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, ".downloaded"), nil, 0o644))

	emptyDir := filepath.Join(cfg.ResultsDir, "nightly-upgrade", "12")
	helpers.WriteFiles(t, emptyDir, map[string]string{".downloaded": ""})

	downloaded(t, filepath.Join(cfg.ResultsDir, "babbage_dbsync", "7"), map[string]string{
		"a-result.json": helpers.ResultJSON(t, "a", "passed", ""),
	})

	rep, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), &helpers.FakeGenerator{}, cfg).Run(context.Background(), helpers.CreateLogger(t))
	require.Error(t, err)

	var multiErr *errors.MultiError
	require.True(t, errors.As(err, &multiErr))
	assert.Equal(t, 2, multiErr.Len())

	var malformedErr archive.MalformedArchiveError
	assert.True(t, errors.As(err, &malformedErr))

	summary := rep.Summarize()
	assert.Equal(t, 1, summary.UnitsPublished)
	assert.Equal(t, 2, summary.UnitsFailed)
	assert.True(t, rep.Failed())

	run, err := rep.GetRun(emptyDir)
	require.NoError(t, err)
	require.NotNil(t, run.Reason)
	assert.Equal(t, report.ReasonNoResults, *run.Reason)

	assert.FileExists(t, filepath.Join(cfg.WebDir, "babbage_dbsync", "badge.json"))
	assert.FileExists(t, filepath.Join(cfg.ResultsDir, "babbage_dbsync", "7", ".published"))
	assert.NoFileExists(t, filepath.Join(badDir, ".published"))
	assert.NoFileExists(t, filepath.Join(emptyDir, ".published"))
}

func TestRunGeneratorFailureKeepsWorkPending(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)

	markerDir := filepath.Join(cfg.ResultsDir, "nightly", "506")
	downloaded(t, markerDir, map[string]string{"a-result.json": helpers.ResultJSON(t, "a", "passed", "")})

	previous := map[string]string{"index.html": "previous"}
	helpers.WriteFiles(t, filepath.Join(cfg.WebDir, "nightly"), previous)

	_, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), &helpers.FakeGenerator{Err: errors.New("allure crashed")}, cfg).
		Run(context.Background(), helpers.CreateLogger(t))
	require.ErrorContains(t, err, "allure crashed")

	assert.NoFileExists(t, filepath.Join(markerDir, ".published"))
	assert.Equal(t, previous, helpers.ReadTree(t, filepath.Join(cfg.WebDir, "nightly")))
}

func TestRunForceRegenerate(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	cfg.ForceRegenerate = true

	helpers.WriteFiles(t, cfg.AggregateDir, map[string]string{
		"nightly/a-result.json":                 helpers.ResultJSON(t, "a", "passed", ""),
		"nightly/history/history.json":          "{}",
		"regression/rc1/step1/b-result.json":    helpers.ResultJSON(t, "b", "failed", ""),
		"regression/rc1/step1/c-container.json": "{}",
		"empty/environment.properties":          "",
	})

	// new results are not looked at
	downloaded(t, filepath.Join(cfg.ResultsDir, "upgrade", "3"), map[string]string{
		"z-result.json": helpers.ResultJSON(t, "z", "passed", ""),
	})

	generator := &helpers.FakeGenerator{}

	rep, err := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), generator, cfg).Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(cfg.AggregateDir, "nightly"),
		filepath.Join(cfg.AggregateDir, "regression", "rc1", "step1"),
	}, generator.Inputs())
	assert.Equal(t, 2, rep.Summarize().UnitsPublished)

	assert.FileExists(t, filepath.Join(cfg.WebDir, "nightly", "badge.json"))
	assert.FileExists(t, filepath.Join(cfg.WebDir, "regression", "rc1", "step1", "badge.json"))
	assert.NoFileExists(t, filepath.Join(cfg.ResultsDir, "upgrade", "3", ".published"))
}

func TestRunNothingToDo(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	p := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), &helpers.FakeGenerator{}, cfg)

	// the results directory must exist
	_, err := p.Run(context.Background(), helpers.CreateLogger(t))
	require.Error(t, err)

	require.NoError(t, os.MkdirAll(cfg.ResultsDir, 0o755))

	rep, err := p.Run(context.Background(), helpers.CreateLogger(t))
	require.NoError(t, err)
	assert.Zero(t, rep.Summarize().TotalUnits())
}
