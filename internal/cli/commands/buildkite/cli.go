// Package buildkite provides the `buildkite` command that downloads the results of the nightly Buildkite pipelines.
package buildkite

import (
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/cli/flags"
	"github.com/input-output-hk/report-aggregator/options"
)

const (
	CommandName = "buildkite"

	OrganizationFlagName = "org"
)

func NewFlags(opts *options.Options) []cli.Flag {
	return []cli.Flag{
		flags.NewResultsDirFlag(opts, "Base directory for results."),
		flags.NewTimedeltaMinsFlag(opts, options.DefaultTimedeltaMins),
		&cli.StringFlag{
			Name:        OrganizationFlagName,
			EnvVars:     flags.EnvVars(OrganizationFlagName),
			Usage:       "Buildkite organization to download results from.",
			Value:       opts.Organization,
			Destination: &opts.Organization,
		},
		flags.NewBuildkiteTokenFlag(opts),
	}
}

func NewCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Download nightly results from Buildkite.",
		Flags: NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			if err := opts.Normalize(); err != nil {
				return err
			}

			return Run(ctx.Context, opts.Logger, opts)
		},
	}
}
