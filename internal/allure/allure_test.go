//go:build linux || darwin

package allure_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/allure"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/os/exec"
	"github.com/input-output-hk/report-aggregator/test/helpers"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "in")
	outputDir := filepath.Join(tmpDir, "out")

	helpers.WriteFiles(t, inputDir, map[string]string{
		"1-result.json": "{}",
		"2-result.json": "{}",
	})
	helpers.WriteFiles(t, outputDir, map[string]string{"stale.html": "stale"})

	generator := allure.NewCLI("testdata/fake-allure.sh")
	require.NoError(t, generator.Generate(context.Background(), helpers.CreateLogger(t), inputDir, outputDir))

	assert.Equal(t, map[string]string{
		allure.SummaryPath: `{"statistic":{"passed":2,"failed":0,"broken":0}}`,
	}, helpers.ReadTree(t, outputDir))
}

func TestGenerateFailure(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "in")
	helpers.WriteFiles(t, inputDir, map[string]string{"fail": ""})

	err := allure.NewCLI("testdata/fake-allure.sh").Generate(context.Background(), helpers.CreateLogger(t), inputDir, filepath.Join(tmpDir, "out"))
	require.Error(t, err)

	var generateErr allure.GenerateError
	require.True(t, errors.As(err, &generateErr))
	assert.Equal(t, inputDir, generateErr.InputDir)

	var exitErr exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, "cannot generate report", exitErr.Stderr)
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	inputDir := filepath.Join(tmpDir, "in")
	outputDir := filepath.Join(tmpDir, "out")

	helpers.WriteFiles(t, inputDir, map[string]string{"1-result.json": "{}"})

	generator, err := allure.ParseCommand("bash 'testdata/fake-allure.sh'")
	require.NoError(t, err)
	require.NoError(t, generator.Generate(context.Background(), helpers.CreateLogger(t), inputDir, outputDir))

	assert.FileExists(t, filepath.Join(outputDir, allure.SummaryPath))

	_, err = allure.ParseCommand(`allure "unterminated`)
	require.Error(t, err)
}
