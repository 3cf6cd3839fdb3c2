// Package publish renders aggregated test results into Allure reports and swaps them into the web tree.
package publish

import (
	"context"

	"github.com/input-output-hk/report-aggregator/internal/allure"
	"github.com/input-output-hk/report-aggregator/internal/identity"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// Config holds the directory trees a Publisher works with.
type Config struct {
	// AggregateDir is the root of the aggregation tree, the results directories are below it.
	AggregateDir string
	// ReportDir is the root of the scratch tree reports are generated into.
	ReportDir string
	// WebDir is the root of the tree served to users.
	WebDir string
	// BadgeFormat selects the message of the published badges.
	BadgeFormat BadgeFormat
}

// Result describes a published report.
type Result struct {
	Job    identity.Job
	WebDir string
	Badge  Badge
}

// Publisher generates and publishes the report of one results directory at a time.
type Publisher struct {
	fs        vfs.FS
	generator allure.Generator
	cfg       Config
}

// New returns a Publisher.
func New(fs vfs.FS, generator allure.Generator, cfg Config) *Publisher {
	if cfg.BadgeFormat == "" {
		cfg.BadgeFormat = BadgeCanonical
	}

	return &Publisher{
		fs:        fs,
		generator: generator,
		cfg:       cfg,
	}
}

// Publish generates the report of resultsDir, a directory of the aggregation tree, and replaces the published
// report of the same job with it. The results directory is modified in place: it receives the history of the
// published report and its statuses are reclassified. Nothing in the web tree is touched unless the report and
// its badge were generated successfully.
func (p *Publisher) Publish(ctx context.Context, l log.Logger, resultsDir string) (*Result, error) {
	job, err := identity.ResolveDirectory(resultsDir, p.cfg.AggregateDir)
	if err != nil {
		return nil, err
	}

	l = l.WithField("job", job.String())

	webDir := job.Path(p.cfg.WebDir)

	if found, err := CopyHistory(p.fs, webDir, resultsDir); err != nil {
		return nil, err
	} else if found {
		l.Debugf("Copied history from %s", webDir)
	}

	changed, err := RewriteStatuses(p.fs, resultsDir)
	if err != nil {
		return nil, err
	}

	if changed > 0 {
		l.Debugf("Reclassified the status of %d results", changed)
	}

	reportDir := job.Path(p.cfg.ReportDir)

	if err := vfs.RecreateDir(p.fs, reportDir); err != nil {
		return nil, err
	}

	l.Infof("Generating report from %s", resultsDir)

	if err := p.generator.Generate(ctx, l, resultsDir, reportDir); err != nil {
		return nil, err
	}

	badge, err := WriteBadge(p.fs, reportDir, p.cfg.BadgeFormat)
	if err != nil {
		return nil, err
	}

	if err := ReplaceDir(p.fs, reportDir, webDir); err != nil {
		return nil, err
	}

	l.Infof("Published report to %s: %s", webDir, badge.Message)

	return &Result{Job: job, WebDir: webDir, Badge: badge}, nil
}
