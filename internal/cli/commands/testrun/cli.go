// Package testrun provides the `testrun` command that downloads the results of one regression testrun.
package testrun

import (
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/cli/flags"
	"github.com/input-output-hk/report-aggregator/options"
)

const (
	CommandName = "testrun"

	TestrunNameFlagName  = "testrun-name"
	TestrunNameFlagAlias = "n"
)

func NewFlags(opts *options.Options) []cli.Flag {
	return []cli.Flag{
		flags.NewResultsDirFlag(opts, "Base directory for results."),
		&cli.StringFlag{
			Name:        TestrunNameFlagName,
			Aliases:     []string{TestrunNameFlagAlias},
			EnvVars:     flags.EnvVars(TestrunNameFlagName),
			Usage:       "Name of the testrun to download results for.",
			Required:    true,
			Destination: &opts.TestrunName,
		},
		flags.NewRepoSlugFlag(opts),
		flags.NewTimedeltaMinsFlag(opts, options.DefaultTestrunTimedeltaMins),
		flags.NewGitHubTokenFlag(opts),
	}
}

func NewCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Download regression results for a testrun from GitHub.",
		Flags: NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			if err := opts.Normalize(); err != nil {
				return err
			}

			return Run(ctx.Context, opts.Logger, opts)
		},
	}
}
