// Package pipeline drives a publish run: it finds freshly downloaded results, stages and aggregates them,
// and publishes a report for every aggregated directory.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/input-output-hk/report-aggregator/internal/aggregate"
	"github.com/input-output-hk/report-aggregator/internal/allure"
	"github.com/input-output-hk/report-aggregator/internal/archive"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/identity"
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/internal/materialize"
	"github.com/input-output-hk/report-aggregator/internal/publish"
	"github.com/input-output-hk/report-aggregator/internal/report"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const workDirPrefix = "report-aggregator-"

// Config configures a publish run.
type Config struct {
	// ResultsDir is the root of the downloaded results.
	ResultsDir string
	// AggregateDir is the root of the persistent aggregation tree.
	AggregateDir string
	// WebDir is the root of the published reports.
	WebDir string
	// TempDir is where the scratch trees of the run are created, the system default when empty.
	TempDir string
	// Mode selects how builds of the same job are combined.
	Mode aggregate.Mode
	// BadgeFormat selects the message of the published badges.
	BadgeFormat publish.BadgeFormat
	// ForceRegenerate republishes every directory of the aggregation tree instead of the new results.
	ForceRegenerate bool
	// Color colors the summary of the run.
	Color bool
}

// Pipeline runs the publish stage.
type Pipeline struct {
	fs        vfs.FS
	tracker   *marker.Tracker
	extractor archive.Extractor
	generator allure.Generator
	cfg       Config
}

// New returns a Pipeline.
func New(fs vfs.FS, extractor archive.Extractor, generator allure.Generator, cfg Config) *Pipeline {
	return &Pipeline{
		fs:        fs,
		tracker:   marker.NewTracker(fs),
		extractor: extractor,
		generator: generator,
		cfg:       cfg,
	}
}

// run holds the per-invocation state.
type run struct {
	materializer *materialize.Materializer
	aggregator   *aggregate.Aggregator
	publisher    *publish.Publisher
	report       *report.Report
	errs         *errors.MultiError
}

// Run processes all pending work and returns the report of the units processed. A failing unit does not stop
// the run, the returned error collects the failures of all units.
func (p *Pipeline) Run(ctx context.Context, l log.Logger) (*report.Report, error) {
	workDir, err := afero.TempDir(p.fs, p.cfg.TempDir, workDirPrefix)
	if err != nil {
		return nil, errors.New(err)
	}

	defer func() {
		if err := p.fs.RemoveAll(workDir); err != nil {
			l.Warnf("Failed to remove %s: %v", workDir, err)
		}
	}()

	r := &run{
		materializer: materialize.New(p.fs, p.extractor, filepath.Join(workDir, "staging"), filepath.Join(workDir, "scratch")),
		aggregator:   aggregate.New(p.fs),
		publisher: publish.New(p.fs, p.generator, publish.Config{
			AggregateDir: p.cfg.AggregateDir,
			ReportDir:    filepath.Join(workDir, "reports"),
			WebDir:       p.cfg.WebDir,
			BadgeFormat:  p.cfg.BadgeFormat,
		}),
		report: report.NewReport(
			report.WithWorkingDir(p.cfg.AggregateDir),
			report.WithShowUnitLevelSummary(true),
			report.WithColor(p.cfg.Color),
		),
		errs:   &errors.MultiError{},
	}

	if p.cfg.ForceRegenerate {
		err = p.regenerate(ctx, l, r)
	} else {
		err = p.publishNew(ctx, l, r)
	}

	if err != nil {
		return r.report, err
	}

	return r.report, r.errs.ErrorOrNil()
}

func (p *Pipeline) publishNew(ctx context.Context, l log.Logger, r *run) error {
	pending, err := p.tracker.NewWork(p.cfg.ResultsDir)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		l.Infof("No new results in %s", p.cfg.ResultsDir)
		return nil
	}

	l.Infof("Found %d new results in %s", len(pending), p.cfg.ResultsDir)

	var staged []aggregate.Staged

	for _, markerDir := range pending {
		if err := ctx.Err(); err != nil {
			return errors.New(err)
		}

		unit, err := p.stage(ctx, l, r, markerDir)
		if err != nil {
			p.fail(l, r, markerDir, err)
			continue
		}

		staged = append(staged, unit...)
	}

	for _, group := range r.aggregator.Plan(staged, p.cfg.AggregateDir, p.cfg.Mode) {
		if err := ctx.Err(); err != nil {
			return errors.New(err)
		}

		name := group.Dir
		if group.Clear {
			name = group.Inputs[0].Job.Path(p.cfg.AggregateDir)
		}

		ul := l.WithField("job", group.Job.String())

		if group.Clear {
			if last := p.lastBuild(group.Dir); last != "" && aggregate.LessBuild(group.Inputs[0].Job.BuildID, last) {
				p.skip(ul, r, name, report.ReasonSuperseded)
				p.markPublished(ul, r, group)

				continue
			}
		}

		if err := r.aggregator.Apply(ul, group); err != nil {
			p.fail(ul, r, name, err)
			continue
		}

		if err := p.publish(ctx, ul, r, name, group.Dir); err != nil {
			continue
		}

		if group.Clear {
			if err := p.tracker.Write(group.Dir, marker.LastBuild, group.Inputs[0].Job.BuildID); err != nil {
				r.errs = r.errs.Append(err)
				ul.Errorf("Failed to record the build published from %s: %v", group.Dir, err)
			}
		}

		p.markPublished(ul, r, group)
	}

	return nil
}

// lastBuild returns the id of the build last published from the aggregation directory, empty when unknown.
func (p *Pipeline) lastBuild(dir string) string {
	if !p.tracker.Has(dir, marker.LastBuild) {
		return ""
	}

	content, err := p.tracker.Read(dir, marker.LastBuild)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(content)
}

func (p *Pipeline) markPublished(l log.Logger, r *run, group aggregate.Group) {
	for _, source := range group.Sources() {
		if err := p.tracker.Write(source, marker.Published, ""); err != nil {
			r.errs = r.errs.Append(err)
			l.Errorf("Failed to mark %s as published: %v", source, err)
		}
	}
}

// stage materializes the results next to one marker. When a directory holds both an archive and an unpacked
// directory, the directory is staged last and wins.
func (p *Pipeline) stage(ctx context.Context, l log.Logger, r *run, markerDir string) ([]aggregate.Staged, error) {
	locations, err := r.materializer.Locate(markerDir)
	if err != nil {
		return nil, err
	}

	var (
		staged []aggregate.Staged
		seen   = map[string]bool{}
	)

	for _, loc := range locations {
		job, err := identity.ResolveResultPath(loc.Path, p.cfg.ResultsDir)
		if err != nil {
			return nil, err
		}

		dir, err := r.materializer.Materialize(ctx, l.WithField("job", job.String()), loc, job)
		if err != nil {
			return nil, err
		}

		if seen[dir] {
			continue
		}

		seen[dir] = true
		staged = append(staged, aggregate.Staged{Dir: dir, Job: job, Sources: []string{markerDir}})
	}

	return staged, nil
}

// regenerate republishes every results directory of the aggregation tree.
func (p *Pipeline) regenerate(ctx context.Context, l log.Logger, r *run) error {
	dirs, err := p.resultsDirs()
	if err != nil {
		return err
	}

	l.Infof("Regenerating %d reports from %s", len(dirs), p.cfg.AggregateDir)

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return errors.New(err)
		}

		p.publish(ctx, l, r, dir, dir) //nolint:errcheck
	}

	return nil
}

// resultsDirs returns the directories of the aggregation tree holding result files, sorted.
func (p *Pipeline) resultsDirs() ([]string, error) {
	found := map[string]bool{}

	err := afero.Walk(p.fs, p.cfg.AggregateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if info.Mode().IsRegular() && strings.HasSuffix(info.Name(), publish.ResultFileSuffix) {
			found[filepath.Dir(path)] = true
		}

		return nil
	})
	if err != nil {
		return nil, errors.New(err)
	}

	dirs := make([]string, 0, len(found))
	for dir := range found {
		dirs = append(dirs, dir)
	}

	sort.Strings(dirs)

	return dirs, nil
}

func (p *Pipeline) publish(ctx context.Context, l log.Logger, r *run, name, dir string) error {
	if err := r.report.AddRun(report.NewRun(name)); err != nil {
		return errors.New(err)
	}

	result, err := r.publisher.Publish(ctx, l, dir)
	if err != nil {
		l.Errorf("Failed to publish %s: %v", dir, err)
		r.errs = r.errs.Append(err)

		r.report.EndRun(name, report.WithResult(report.ResultFailed), report.WithReason(reasonOf(err)), report.WithCauseError(err)) //nolint:errcheck

		return err
	}

	l.Debugf("Published %s to %s", result.Job, result.WebDir)

	return errors.New(r.report.EndRun(name))
}

// skip records a unit that is not published.
func (p *Pipeline) skip(l log.Logger, r *run, name string, reason report.Reason) {
	l.Infof("Skipping %s: %s", name, reason)

	if err := r.report.AddRun(report.NewRun(name)); err != nil {
		return
	}

	r.report.EndRun(name, report.WithResult(report.ResultSkipped), report.WithReason(reason)) //nolint:errcheck
}

// fail records a unit that failed before it could be published.
func (p *Pipeline) fail(l log.Logger, r *run, name string, err error) {
	l.Errorf("Failed to process %s: %v", name, err)
	r.errs = r.errs.Append(err)

	if addErr := r.report.AddRun(report.NewRun(name)); addErr != nil {
		return
	}

	r.report.EndRun(name, report.WithResult(report.ResultFailed), report.WithReason(reasonOf(err)), report.WithCauseError(err)) //nolint:errcheck
}

func reasonOf(err error) report.Reason {
	var (
		noResults   materialize.NoResultsError
		missingDir  materialize.MissingResultsDirError
		malformed   archive.MalformedArchiveError
		unsupported archive.UnsupportedArchiveError
		summary     publish.SummaryError
		outside     identity.PathOutsideBaseError
	)

	switch {
	case errors.As(err, &noResults):
		return report.ReasonNoResults
	case errors.As(err, &missingDir), errors.As(err, &malformed), errors.As(err, &unsupported), errors.As(err, &summary):
		return report.ReasonBadArtifact
	case errors.As(err, &outside):
		return report.ReasonInvalidInput
	default:
		return report.ReasonRunError
	}
}
