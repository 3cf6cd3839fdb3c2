// Package cli assembles the report aggregator command line application.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/cli/commands/buildkite"
	"github.com/input-output-hk/report-aggregator/internal/cli/commands/coverage"
	"github.com/input-output-hk/report-aggregator/internal/cli/commands/nightly"
	"github.com/input-output-hk/report-aggregator/internal/cli/commands/publish"
	"github.com/input-output-hk/report-aggregator/internal/cli/commands/testrun"
	"github.com/input-output-hk/report-aggregator/internal/cli/flags"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const AppName = "report-aggregator"

// Version is set at build time with `-ldflags "-X .../cli.Version=<version>"`.
var Version = "dev"

// NewApp creates the report aggregator CLI App.
func NewApp(opts *options.Options) *cli.App {
	app := cli.NewApp()
	app.Name = AppName
	app.Usage = "Downloads CI test results from GitHub and Buildkite, aggregates them and publishes Allure reports\nand cardano-cli coverage to a web directory."
	app.UsageText = AppName + " [global options] <command> [command options]"
	app.Version = Version
	app.Writer = opts.Writer
	app.ErrWriter = opts.ErrWriter
	app.Flags = NewGlobalFlags(opts)
	app.Commands = NewCommands(opts)
	app.Before = setupLogger(opts)
	app.ExitErrHandler = func(*cli.Context, error) {}

	return app
}

// NewCommands returns the commands of the App.
func NewCommands(opts *options.Options) []*cli.Command {
	return []*cli.Command{
		nightly.NewCommand(opts),
		testrun.NewCommand(opts),
		buildkite.NewCommand(opts),
		publish.NewCommand(opts),
		coverage.NewCommand(opts),
	}
}

// NewGlobalFlags returns the flags accepted before any command.
func NewGlobalFlags(opts *options.Options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        flags.LogLevelFlagName,
			EnvVars:     flags.EnvVars(flags.LogLevelFlagName),
			Usage:       "Logging level, one of " + log.AllLevels.String() + ".",
			Value:       opts.LogLevel,
			Destination: &opts.LogLevel,
		},
		&cli.StringFlag{
			Name:        flags.LogFormatFlagName,
			EnvVars:     flags.EnvVars(flags.LogFormatFlagName),
			Usage:       "Logging format, one of text, json.",
			Value:       opts.LogFormat,
			Destination: &opts.LogFormat,
		},
	}
}

func setupLogger(opts *options.Options) cli.BeforeFunc {
	return func(_ *cli.Context) error {
		level, err := log.ParseLevel(opts.LogLevel)
		if err != nil {
			return err
		}

		formatter, err := log.NewFormatter(opts.LogFormat, !isTerminal(opts.ErrWriter))
		if err != nil {
			return err
		}

		opts.Logger = opts.Logger.WithOptions(
			log.WithLevel(level),
			log.WithOutput(opts.ErrWriter),
			log.WithFormatter(formatter),
		)

		return nil
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)

	return ok && isatty.IsTerminal(file.Fd())
}
