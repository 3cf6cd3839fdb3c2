// Package nightly provides the `nightly` command that downloads the results of the nightly GitHub workflows.
package nightly

import (
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/cli/flags"
	"github.com/input-output-hk/report-aggregator/options"
)

const CommandName = "nightly"

func NewFlags(opts *options.Options) []cli.Flag {
	return []cli.Flag{
		flags.NewResultsDirFlag(opts, "Base directory for results."),
		flags.NewTimedeltaMinsFlag(opts, options.DefaultTimedeltaMins),
		flags.NewRepoSlugFlag(opts),
		flags.NewGitHubTokenFlag(opts),
	}
}

func NewCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Download nightly results from GitHub.",
		Flags: NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			if err := opts.Normalize(); err != nil {
				return err
			}

			return Run(ctx.Context, opts.Logger, opts)
		},
	}
}
