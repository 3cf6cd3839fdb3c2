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
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// RegressionWorkflowName is contained in the names of the regression workflows.
	RegressionWorkflowName = "Regression tests"

	regressionEvent = "workflow_dispatch"

	// repeatTag marks the runs that repeat a part of a testrun.
	repeatTag = ":repeat:"
)

// Slug returns the directory name of a workflow or testrun.
func Slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// FetchTestrun downloads the results of the runs of a regression testrun created after since into
// baseDir/<workflow slug>/<testrun slug>/<run number>[/step<N>]. Runs are processed newest first, up to and
// including the first full run of the testrun. Only the first workflow that has runs of the testrun is used.
func (c *Client) FetchTestrun(ctx context.Context, l log.Logger, baseDir, testrun string, since time.Time) error {
	if testrun == "" {
		return errors.Errorf("testrun name cannot be empty")
	}

	workflows, err := c.workflows(ctx, RegressionWorkflowName)
	if err != nil {
		return err
	}

	l.Infof("Searching for testrun %q since %s", testrun, since.Format(time.RFC3339))

	var (
		errs  = &errors.MultiError{}
		found bool
	)

	for _, workflow := range workflows {
		slug := Slug(workflow.GetName())
		wl := l.WithField("workflow", slug)
		testrunDir := filepath.Join(baseDir, slug, Slug(testrun))

		if !c.tracker.Has(testrunDir, marker.TestrunName) {
			if err := c.tracker.Write(testrunDir, marker.TestrunName, testrun); err != nil {
				return err
			}
		} else if recorded, err := c.tracker.Read(testrunDir, marker.TestrunName); err == nil && recorded != testrun {
			wl.Warnf("Directory %s was created for testrun %q, results of %q are added to it", testrunDir, recorded, testrun)
		}

		wl.Infof("Processing workflow %s", workflow.GetName())

		opts := &github.ListWorkflowRunsOptions{Event: regressionEvent, Status: runStatusCompleted}

		err := c.eachRun(ctx, workflow, opts, func(run *github.WorkflowRun) bool {
			if createdBefore(run, since) || ctx.Err() != nil {
				return false
			}

			if !strings.Contains(run.GetName(), "Run: "+testrun) {
				return true
			}

			found = true

			wl.Infof("Processing run %d", run.GetRunNumber())

			destDir := filepath.Join(testrunDir, strconv.Itoa(run.GetRunNumber()))

			if err := c.fetchTestrunRun(ctx, wl.WithField("run", run.GetRunNumber()), run, destDir); err != nil {
				wl.Errorf("Failed to fetch run %d: %v", run.GetRunNumber(), err)
				errs = errs.Append(err)
			}

			// older runs belong to previous testruns of the same name
			return strings.Contains(run.GetName(), repeatTag)
		})
		if err != nil {
			wl.Error(err)
			errs = errs.Append(err)
		}

		if found {
			break
		}
	}

	if !found {
		l.Warnf("No runs of testrun %q found", testrun)
	}

	if err := ctx.Err(); err != nil {
		errs = errs.Append(errors.New(err))
	}

	return errs.ErrorOrNil()
}

func (c *Client) fetchTestrunRun(ctx context.Context, l log.Logger, run *github.WorkflowRun, destDir string) error {
	artifacts, err := c.artifacts(ctx, run)
	if err != nil {
		return err
	}

	results := filterArtifacts(artifacts, ResultsArtifactPrefix)
	hasSteps := len(results) > 1

	if hasSteps && !strings.Contains(results[0].GetName(), identity.StepPrefix) {
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

	return errs.ErrorOrNil()
}
