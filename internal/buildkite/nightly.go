package buildkite

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/identity"
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/internal/materialize"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// NightlyPipelinePrefix starts the slugs of the nightly pipelines.
	NightlyPipelinePrefix = "cardano-node-tests-nightly"
	// DisabledBranch is set as the default branch of pipelines that must not run.
	DisabledBranch = "disabled"
)

// IsActiveNightly reports whether the pipeline is a nightly pipeline that is neither disabled nor archived.
func IsActiveNightly(pipeline Pipeline) bool {
	return strings.HasPrefix(pipeline.Slug, NightlyPipelinePrefix) &&
		pipeline.DefaultBranch != DisabledBranch &&
		pipeline.ArchivedAt == nil
}

// FetchNightly downloads the results archives of the nightly builds finished after since into
// baseDir/<pipeline slug>/<build number>[/step<N>], steps numbered from zero.
func (c *Client) FetchNightly(ctx context.Context, l log.Logger, baseDir string, since time.Time) error {
	pipelines, err := c.Pipelines(ctx)
	if err != nil {
		return err
	}

	errs := &errors.MultiError{}

	for _, pipeline := range pipelines {
		if !IsActiveNightly(pipeline) {
			continue
		}

		pl := l.WithField("pipeline", pipeline.Slug)
		pl.Infof("Processing pipeline %s", pipeline.Slug)

		builds, err := c.Builds(ctx, pipeline.Slug, BuildStateFinished, since)
		if err != nil {
			pl.Error(err)
			errs = errs.Append(err)

			continue
		}

		for _, build := range builds {
			if err := ctx.Err(); err != nil {
				return errs.Append(errors.New(err)).ErrorOrNil()
			}

			pl.Infof("Processing build %d", build.Number)

			destDir := filepath.Join(baseDir, pipeline.Slug, strconv.Itoa(build.Number))

			if err := c.fetchBuild(ctx, pl.WithField("build", build.Number), pipeline.Slug, build.Number, destDir); err != nil {
				pl.Errorf("Failed to fetch build %d: %v", build.Number, err)
				errs = errs.Append(err)
			}
		}
	}

	return errs.ErrorOrNil()
}

func (c *Client) fetchBuild(ctx context.Context, l log.Logger, pipeline string, build int, destDir string) error {
	artifacts, err := c.Artifacts(ctx, pipeline, build)
	if err != nil {
		return err
	}

	var results []Artifact

	for _, artifact := range artifacts {
		if strings.HasPrefix(artifact.Filename, materialize.ResultsArchiveName) {
			results = append(results, artifact)
		}
	}

	hasSteps := len(results) > 1
	errs := &errors.MultiError{}

	for i, artifact := range results {
		dir := destDir
		if hasSteps {
			dir = filepath.Join(destDir, identity.StepPrefix+strconv.Itoa(i))
		}

		if err := c.fetchArtifact(ctx, l, artifact, dir); err != nil {
			errs = errs.Append(err)
		}
	}

	return errs.ErrorOrNil()
}

func (c *Client) fetchArtifact(ctx context.Context, l log.Logger, artifact Artifact, destDir string) error {
	if c.tracker.Has(destDir, marker.Downloaded) {
		l.Debugf("Artifact %s already downloaded to %s", artifact.ID, destDir)
		return nil
	}

	if err := c.fs.MkdirAll(destDir, vfs.DefaultDirPerm); err != nil {
		return errors.New(err)
	}

	destFile := filepath.Join(destDir, materialize.ResultsArchiveName)
	if err := c.fs.Remove(destFile); err != nil && !os.IsNotExist(err) {
		return errors.New(err)
	}

	l.Infof("Downloading artifact %s to %s", artifact.ID, destFile)

	if err := c.downloader.Download(ctx, artifact.DownloadURL, destFile); err != nil {
		return err
	}

	return c.tracker.Write(destDir, marker.Downloaded, "")
}
