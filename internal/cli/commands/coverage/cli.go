// Package coverage provides the `publish-coverage` command that publishes the merged cardano-cli coverage of
// the latest nightly runs.
package coverage

import (
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/cli/flags"
	"github.com/input-output-hk/report-aggregator/options"
)

const CommandName = "publish-coverage"

func NewFlags(opts *options.Options) []cli.Flag {
	return []cli.Flag{
		flags.NewResultsDirFlag(opts, "Base directory with results."),
		flags.NewWebDirFlag(opts, "Base directory for published coverage."),
	}
}

func NewCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Publish the cardano-cli coverage report.",
		Flags: NewFlags(opts),
		Action: func(_ *cli.Context) error {
			if err := opts.Normalize(); err != nil {
				return err
			}

			return Run(opts.Logger, opts)
		},
	}
}
