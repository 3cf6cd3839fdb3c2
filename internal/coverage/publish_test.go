package coverage_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/coverage"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/test/helpers"
)

func writeCoverage(t *testing.T, dir, content string) {
	t.Helper()

	files := map[string]string{".cov_downloaded": ""}
	if content != "" {
		files[coverage.FileName] = content
	}

	helpers.WriteFiles(t, dir, files)
}

func fixedClock(day string) func() time.Time {
	return func() time.Time {
		now, _ := time.Parse("2006-01-02", day)
		return now
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	nightly := filepath.Join(resultsDir, "cardano-node-tests-nightly")
	p2p := filepath.Join(resultsDir, "cardano-node-tests-nightly-p2p")

	writeCoverage(t, filepath.Join(nightly, "850"), `{"old":1}`)
	writeCoverage(t, filepath.Join(nightly, "2005"), `{"new":1}`)
	// marker of an incomplete run without the coverage file
	writeCoverage(t, filepath.Join(nightly, "2006"), "")
	writeCoverage(t, filepath.Join(p2p, "2010"), `{"p2p":1}`)
	writeCoverage(t, filepath.Join(resultsDir, "regression-tests", "rc1", "12"), `{"regression":1}`)

	files, err := coverage.NewPublisher(vfs.NewOSFS()).Discover(helpers.CreateLogger(t), resultsDir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(nightly, "2005", coverage.FileName),
		filepath.Join(p2p, "2010", coverage.FileName),
	}, files)
}

func TestPublish(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	webDir := filepath.Join(t.TempDir(), "coverage")

	writeCoverage(t, filepath.Join(resultsDir, "cardano-node-tests-nightly", "2005"),
		`{"cardano-cli":{"_count_cardano-cli":2,"latest":{"_count_latest":2,"query":{"_count_query":2,"tip":{"_count_tip":2,"--testnet-magic":2},"utxo":{"_count_utxo":0,"--address":0}}}}}`)
	writeCoverage(t, filepath.Join(resultsDir, "cardano-node-tests-nightly-p2p", "2010"),
		`{"cardano-cli":{"_count_cardano-cli":1,"latest":{"_count_latest":1,"query":{"_count_query":1,"utxo":{"_count_utxo":1,"--address":1,"--whole-utxo":0}}}}}`)

	publisher := coverage.NewPublisher(vfs.NewOSFS(), coverage.WithClock(fixedClock("2026-10-16")))

	result, err := publisher.Publish(helpers.CreateLogger(t), resultsDir, webDir)
	require.NoError(t, err)

	assert.Len(t, result.Files, 2)
	assert.Equal(t, 67, result.Total)
	assert.Equal(t, filepath.Join(webDir, "coverage_20261016.json"), result.ReportPath)

	content, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)

	var compact bytes.Buffer
	require.NoError(t, json.Compact(&compact, content))

	assert.Equal(t,
		`{"cardano-cli":{"_count_cardano-cli":3,"latest":{"_count_latest":3,"query":{"_count_query":3,`+
			`"tip":{"_count_tip":2,"_coverage_tip":100.0},`+
			`"utxo":{"_count_utxo":1,"--address":1,"--whole-utxo":0,"_coverage_utxo":50.0},`+
			`"_coverage_query":66.66666666666667},"_coverage_latest":66.66666666666667},`+
			`"_coverage_cardano-cli":66.66666666666667},"_coverage_cardano-cli":67}`,
		compact.String())
	assert.Contains(t, string(content), "\n    \"cardano-cli\": {\n        \"_count_cardano-cli\": 3,")

	link, err := os.Readlink(filepath.Join(webDir, coverage.LatestFileName))
	require.NoError(t, err)
	assert.Equal(t, "coverage_20261016.json", link)

	total, err := os.ReadFile(filepath.Join(webDir, coverage.TotalFileName))
	require.NoError(t, err)
	assert.Equal(t, "67", string(total))

	// the next day gets its own report and the symlink follows it
	publisher = coverage.NewPublisher(vfs.NewOSFS(), coverage.WithClock(fixedClock("2026-10-17")))

	_, err = publisher.Publish(helpers.CreateLogger(t), resultsDir, webDir)
	require.NoError(t, err)

	link, err = os.Readlink(filepath.Join(webDir, coverage.LatestFileName))
	require.NoError(t, err)
	assert.Equal(t, "coverage_20261017.json", link)
	assert.FileExists(t, filepath.Join(webDir, "coverage_20261016.json"))
}

func TestPublishWithoutCoverage(t *testing.T) {
	t.Parallel()

	resultsDir := t.TempDir()
	webDir := filepath.Join(t.TempDir(), "coverage")

	writeCoverage(t, filepath.Join(resultsDir, "cardano-node-tests-nightly", "2005"),
		`{"cardano-cli":{"latest":{"_count_latest":0,"query":0}}}`)

	result, err := coverage.NewPublisher(vfs.NewOSFS(), coverage.WithClock(fixedClock("2026-10-16"))).
		Publish(helpers.CreateLogger(t), resultsDir, webDir)
	require.NoError(t, err)

	assert.Zero(t, result.Total)
	assert.FileExists(t, result.ReportPath)
	assert.NoFileExists(t, filepath.Join(webDir, coverage.TotalFileName))
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("no coverage", func(t *testing.T) {
		t.Parallel()

		_, err := coverage.NewPublisher(vfs.NewOSFS()).Publish(helpers.CreateLogger(t), t.TempDir(), t.TempDir())

		var noCoverageErr coverage.NoCoverageError
		assert.True(t, errors.As(err, &noCoverageErr))
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()

		resultsDir := t.TempDir()
		webDir := filepath.Join(t.TempDir(), "coverage")

		writeCoverage(t, filepath.Join(resultsDir, "cardano-node-tests-nightly", "2005"), `{"cardano-cli":{}}`)

		_, err := coverage.NewPublisher(vfs.NewOSFS()).Publish(helpers.CreateLogger(t), resultsDir, webDir)

		var formatErr coverage.FormatError
		assert.True(t, errors.As(err, &formatErr))
		assert.NoDirExists(t, webDir)
	})
}
