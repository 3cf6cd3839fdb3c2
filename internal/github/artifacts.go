package github

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v53/github"
	"github.com/spf13/afero"

	"github.com/input-output-hk/report-aggregator/internal/archive"
	"github.com/input-output-hk/report-aggregator/internal/coverage"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/internal/materialize"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// ResultsArtifactPrefix starts the names of the artifacts holding test results.
	ResultsArtifactPrefix = "allure-results"
	// CoverageArtifactPrefix starts the names of the artifacts holding CLI coverage.
	CoverageArtifactPrefix = "cli-coverage"
)

// artifactKind describes how a downloaded artifact bundle is laid out on disk.
type artifactKind struct {
	name     string
	marker   marker.Kind
	fileName string
	// pattern matches files of the bundle that are renamed to fileName
	pattern string
}

var (
	resultsArtifact = artifactKind{
		name:     ResultsArtifactPrefix,
		marker:   marker.Downloaded,
		fileName: materialize.ResultsArchiveName,
		pattern:  ResultsArtifactPrefix + "*" + archive.TarXzExt,
	}
	coverageArtifact = artifactKind{
		name:     CoverageArtifactPrefix,
		marker:   marker.CoverageDownloaded,
		fileName: coverage.FileName,
		pattern:  "cli*coverage*.json",
	}
)

func filterArtifacts(artifacts []*github.Artifact, prefix string) []*github.Artifact {
	var found []*github.Artifact

	for _, artifact := range artifacts {
		if strings.HasPrefix(artifact.GetName(), prefix) {
			found = append(found, artifact)
		}
	}

	return found
}

// processArtifact downloads and unpacks the artifact bundle into destDir and writes the marker of its kind.
// Directories already holding the marker are left alone.
func (c *Client) processArtifact(ctx context.Context, l log.Logger, kind artifactKind, destDir string, artifact *github.Artifact) error {
	if c.tracker.Has(destDir, kind.marker) {
		l.Debugf("Artifact %s already downloaded to %s", artifact.GetName(), destDir)
		return nil
	}

	if err := c.fs.MkdirAll(destDir, vfs.DefaultDirPerm); err != nil {
		return errors.New(err)
	}

	destFile := filepath.Join(destDir, kind.fileName)
	if err := c.fs.Remove(destFile); err != nil && !os.IsNotExist(err) {
		return errors.New(err)
	}

	zipFile := filepath.Join(destDir, kind.name+archive.ZipExt)

	l.Infof("Downloading artifact %s to %s", artifact.GetName(), zipFile)

	if err := c.downloader.Download(ctx, artifact.GetArchiveDownloadURL(), zipFile); err != nil {
		return err
	}

	if err := c.extractor.Extract(ctx, zipFile, destDir); err != nil {
		return err
	}

	if err := c.fs.Remove(zipFile); err != nil {
		return errors.New(err)
	}

	if err := c.renameBundled(kind, destDir); err != nil {
		return err
	}

	return c.tracker.Write(destDir, kind.marker, "")
}

// renameBundled gives the unpacked file its canonical name when the artifact was built with a different one.
func (c *Client) renameBundled(kind artifactKind, destDir string) error {
	destFile := filepath.Join(destDir, kind.fileName)

	if vfs.IsFile(c.fs, destFile) {
		return nil
	}

	matches, err := afero.Glob(c.fs, filepath.Join(destDir, kind.pattern))
	if err != nil {
		return errors.New(err)
	}

	if len(matches) == 0 {
		return errors.Errorf("artifact bundle in %s holds no file matching %s", destDir, kind.pattern)
	}

	return errors.New(c.fs.Rename(matches[0], destFile))
}
