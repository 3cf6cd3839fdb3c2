package github

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v53/github"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/identity"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// NightlyWorkflowName is contained in the names of the nightly workflows.
	NightlyWorkflowName = "Nightly tests"
	// NightlyRunOffset is added to the run numbers so that they sort after the build numbers of the Buildkite
	// pipelines the nightly workflows replaced.
	NightlyRunOffset = 2000

	nightlyBranch = "master"
	nightlyEvent  = "schedule"
)

// NightlySlug returns the directory name of a nightly workflow, matching the slug of its Buildkite pipeline.
func NightlySlug(name string) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))

	return strings.ReplaceAll(slug, "nightly-tests", "cardano-node-tests-nightly")
}

// FetchNightly downloads the results and coverage of the scheduled nightly runs created after since into
// baseDir/<workflow slug>/<run number + offset>[/step<N>]. Runs that fail to download are reported in the
// returned error and retried on the next fetch.
func (c *Client) FetchNightly(ctx context.Context, l log.Logger, baseDir string, since time.Time) error {
	workflows, err := c.workflows(ctx, NightlyWorkflowName)
	if err != nil {
		return err
	}

	errs := &errors.MultiError{}

	for _, workflow := range workflows {
		slug := NightlySlug(workflow.GetName())
		wl := l.WithField("workflow", slug)

		wl.Infof("Processing workflow %s", workflow.GetName())

		opts := &github.ListWorkflowRunsOptions{Branch: nightlyBranch, Event: nightlyEvent, Status: runStatusCompleted}

		err := c.eachRun(ctx, workflow, opts, func(run *github.WorkflowRun) bool {
			if createdBefore(run, since) || ctx.Err() != nil {
				return false
			}

			runNumber := run.GetRunNumber() + NightlyRunOffset
			destDir := filepath.Join(baseDir, slug, strconv.Itoa(runNumber))

			wl.Infof("Processing run %d (%d)", run.GetRunNumber(), runNumber)

			if err := c.fetchNightlyRun(ctx, wl.WithField("run", runNumber), run, destDir); err != nil {
				wl.Errorf("Failed to fetch run %d: %v", run.GetRunNumber(), err)
				errs = errs.Append(err)
			}

			return true
		})
		if err != nil {
			wl.Error(err)
			errs = errs.Append(err)
		}
	}

	if err := ctx.Err(); err != nil {
		errs = errs.Append(errors.New(err))
	}

	return errs.ErrorOrNil()
}

func (c *Client) fetchNightlyRun(ctx context.Context, l log.Logger, run *github.WorkflowRun, destDir string) error {
	artifacts, err := c.artifacts(ctx, run)
	if err != nil {
		return err
	}

	results := filterArtifacts(artifacts, ResultsArtifactPrefix)
	hasSteps := len(results) > 0 && strings.Contains(results[0].GetName(), identity.StepPrefix)

	if len(results) > 1 && !hasSteps {
		l.Warnf("Skipping run %d with unexpected artifacts", run.GetRunNumber())
		return nil
	}

	errs := &errors.MultiError{}

	for i, artifact := range results {
		dir := destDir
		if hasSteps {
			dir = filepath.Join(destDir, identity.StepPrefix+strconv.Itoa(i+1))
		}

		if err := c.processArtifact(ctx, l, resultsArtifact, dir, artifact); err != nil {
			errs = errs.Append(err)
		}
	}

	for _, artifact := range filterArtifacts(artifacts, CoverageArtifactPrefix) {
		if err := c.processArtifact(ctx, l, coverageArtifact, destDir, artifact); err != nil {
			errs = errs.Append(err)
		}
	}

	return errs.ErrorOrNil()
}
