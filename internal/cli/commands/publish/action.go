package publish

import (
	"context"
	"os"

	"github.com/input-output-hk/report-aggregator/internal/allure"
	"github.com/input-output-hk/report-aggregator/internal/archive"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/locks"
	"github.com/input-output-hk/report-aggregator/internal/pipeline"
	"github.com/input-output-hk/report-aggregator/internal/publish"
	"github.com/input-output-hk/report-aggregator/internal/report"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// Run publishes the reports of the new results, or of all aggregated results when forced, and writes the
// summary of the processed units. A failed unit makes the command fail after all others were processed.
func Run(ctx context.Context, l log.Logger, opts *options.Options) error {
	generator, err := allure.ParseCommand(opts.AllureBinary)
	if err != nil {
		return err
	}

	return RunWithGenerator(ctx, l, opts, generator)
}

// RunWithGenerator is Run with the given report generator.
func RunWithGenerator(ctx context.Context, l log.Logger, opts *options.Options, generator allure.Generator) error {
	badgeFormat, err := publish.ParseBadgeFormat(opts.BadgeFormat)
	if err != nil {
		return err
	}

	if opts.LockFile != "" {
		lockfile := locks.NewLockfile(opts.LockFile)
		if err := lockfile.TryLock(l); err != nil {
			return err
		}

		defer lockfile.Unlock(l)
	}

	cfg := pipeline.Config{
		ResultsDir:      opts.ResultsDir,
		AggregateDir:    opts.AggregateDir,
		WebDir:          opts.WebDir,
		TempDir:         opts.TempDir,
		Mode:            opts.Mode(),
		BadgeFormat:     badgeFormat,
		ForceRegenerate: opts.ForceRegenerate,
		Color:           report.ShouldColor(opts.Writer),
	}

	l.Debugf("Publishing %s to %s in %s mode", cfg.ResultsDir, cfg.WebDir, cfg.Mode)

	rep, runErr := pipeline.New(vfs.NewOSFS(), archive.NewExtractor(), generator, cfg).Run(ctx, l)

	if rep == nil {
		return runErr
	}

	if err := rep.WriteSummary(opts.Writer); err != nil {
		return errors.Join(runErr, errors.New(err))
	}

	if opts.ReportFile != "" {
		if err := writeReportFile(opts.ReportFile, rep); err != nil {
			return errors.Join(runErr, err)
		}

		l.Debugf("Wrote report of the run to %s", opts.ReportFile)
	}

	return runErr
}

func writeReportFile(path string, rep *report.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.New(err)
	}

	if err := rep.WriteCSV(file); err != nil {
		file.Close() //nolint:errcheck
		return errors.New(err)
	}

	return errors.New(file.Close())
}
