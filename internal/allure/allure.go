// Package allure runs the Allure command line to render a report from a directory of results.
package allure

import (
	"context"
	"slices"

	"github.com/google/shlex"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/os/exec"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// DefaultBinary is the name of the Allure executable looked up in PATH.
const DefaultBinary = "allure"

// SummaryPath is the location of the report statistics, relative to the report directory.
const SummaryPath = "widgets/summary.json"

// Generator renders the results in inputDir into a report in outputDir.
type Generator interface {
	Generate(ctx context.Context, l log.Logger, inputDir, outputDir string) error
}

// GenerateError is returned when the report could not be generated.
type GenerateError struct {
	Err      error
	InputDir string
}

func (err GenerateError) Error() string {
	return "failed to generate report from " + err.InputDir + ": " + err.Err.Error()
}

func (err GenerateError) Unwrap() error {
	return err.Err
}

// CLI generates reports by running `allure generate`.
type CLI struct {
	binary string
	args   []string
}

// NewCLI returns a generator running the given Allure binary, DefaultBinary if empty. The args are passed
// before the `generate` subcommand.
func NewCLI(binary string, args ...string) *CLI {
	if binary == "" {
		binary = DefaultBinary
	}

	return &CLI{binary: binary, args: args}
}

// ParseCommand returns a generator running a shell-quoted command line, e.g. `npx allure` or
// `java -jar /opt/allure.jar`.
func ParseCommand(command string) (*CLI, error) {
	fields, err := shlex.Split(command)
	if err != nil {
		return nil, errors.Errorf("invalid Allure command %q: %w", command, err)
	}

	if len(fields) == 0 {
		return NewCLI(DefaultBinary), nil
	}

	return NewCLI(fields[0], fields[1:]...), nil
}

// Generate runs `allure generate <inputDir> -o <outputDir> --clean`.
func (cli *CLI) Generate(ctx context.Context, l log.Logger, inputDir, outputDir string) error {
	args := append(slices.Clone(cli.args), "generate", inputDir, "-o", outputDir, "--clean")

	cmd := exec.Command(ctx, cli.binary, args...)
	cmd.Configure(exec.WithLogger(l))

	if err := cmd.Run(); err != nil {
		return errors.New(GenerateError{Err: err, InputDir: inputDir})
	}

	return nil
}
