// Package publish provides the `publish` command that aggregates the downloaded results and publishes their
// reports to the web directory.
package publish

import (
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/cli/flags"
	"github.com/input-output-hk/report-aggregator/internal/publish"
	"github.com/input-output-hk/report-aggregator/options"
)

const (
	CommandName = "publish"

	AggregateFlagName       = "aggregate"
	ForceRegenerateFlagName = "force-regenerate"
	AggregateDirFlagName    = "aggregate-dir"
	TempDirFlagName         = "temp-dir"
	AllureBinFlagName       = "allure-bin"
	BadgeFormatFlagName     = "badge-format"
	LockFileFlagName        = "lock-file"
	ReportFileFlagName      = "report-file"
)

func NewFlags(opts *options.Options) []cli.Flag {
	return []cli.Flag{
		flags.NewResultsDirFlag(opts, "Base directory with results."),
		flags.NewWebDirFlag(opts, "Base directory for published reports."),
		&cli.BoolFlag{
			Name:        AggregateFlagName,
			EnvVars:     flags.EnvVars(AggregateFlagName),
			Usage:       "Aggregate new results from the same testrun (job).",
			Destination: &opts.Aggregate,
		},
		&cli.BoolFlag{
			Name:        ForceRegenerateFlagName,
			EnvVars:     flags.EnvVars(ForceRegenerateFlagName),
			Usage:       "Regenerate the reports of all aggregated results, not only of the new ones.",
			Destination: &opts.ForceRegenerate,
		},
		&cli.StringFlag{
			Name:        AggregateDirFlagName,
			EnvVars:     flags.EnvVars(AggregateDirFlagName),
			Usage:       "Directory keeping the aggregated results between runs.",
			DefaultText: "<results-dir>/../" + options.DefaultAggregateDirName,
			TakesFile:   true,
			Destination: &opts.AggregateDir,
		},
		&cli.StringFlag{
			Name:        TempDirFlagName,
			EnvVars:     flags.EnvVars(TempDirFlagName),
			Usage:       "Directory for the scratch files of the run.",
			DefaultText: "system temp directory",
			TakesFile:   true,
			Destination: &opts.TempDir,
		},
		&cli.StringFlag{
			Name:        AllureBinFlagName,
			EnvVars:     flags.EnvVars(AllureBinFlagName),
			Usage:       "Allure command used to generate the reports, e.g. \"npx allure\".",
			Value:       opts.AllureBinary,
			Destination: &opts.AllureBinary,
		},
		&cli.StringFlag{
			Name:        BadgeFormatFlagName,
			EnvVars:     flags.EnvVars(BadgeFormatFlagName),
			Usage:       "Message format of the published badges, one of canonical, legacy.",
			Value:       opts.BadgeFormat,
			Destination: &opts.BadgeFormat,
			Action: func(_ *cli.Context, name string) error {
				_, err := publish.ParseBadgeFormat(name)
				return err
			},
		},
		&cli.StringFlag{
			Name:        LockFileFlagName,
			EnvVars:     flags.EnvVars(LockFileFlagName),
			Usage:       "Lock file held during the run, another run holding it makes the command fail.",
			TakesFile:   true,
			Destination: &opts.LockFile,
		},
		&cli.StringFlag{
			Name:        ReportFileFlagName,
			EnvVars:     flags.EnvVars(ReportFileFlagName),
			Usage:       "Path of a CSV file receiving the outcome of every processed unit.",
			TakesFile:   true,
			Destination: &opts.ReportFile,
		},
	}
}

func NewCommand(opts *options.Options) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Publish reports.",
		Flags: NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			if err := opts.Normalize(); err != nil {
				return err
			}

			return Run(ctx.Context, opts.Logger, opts)
		},
	}
}
