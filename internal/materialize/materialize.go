// Package materialize copies downloaded test results into the staging tree, unpacking them when needed.
package materialize

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/input-output-hk/report-aggregator/internal/archive"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/identity"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// ResultsDirName is the name of the unpacked results directory, both next to the markers and inside archives.
	ResultsDirName = "allure-results"
	// ResultsArchiveName is the name of the compressed results.
	ResultsArchiveName = ResultsDirName + archive.TarXzExt
)

// Kind tells how the results are stored.
type Kind int

const (
	Archive Kind = iota
	Directory
)

func (kind Kind) String() string {
	if kind == Archive {
		return "archive"
	}

	return "directory"
}

// Location is a set of downloaded results, an archive or a directory next to the marker of its fetch.
type Location struct {
	Path      string
	MarkerDir string
	Kind      Kind
}

// MissingResultsDirError means that an archive does not contain the expected results directory,
// i.e. the shape of the upstream artifact changed.
type MissingResultsDirError struct {
	Archive string
}

func (err MissingResultsDirError) Error() string {
	return "archive " + err.Archive + " does not contain the " + ResultsDirName + " directory"
}

// NoResultsError means that a directory was marked as downloaded but holds no results.
type NoResultsError struct {
	Dir string
}

func (err NoResultsError) Error() string {
	return "no " + ResultsArchiveName + " or " + ResultsDirName + " found in " + err.Dir
}

// Materializer stages results under StagingDir, keyed by job identity.
type Materializer struct {
	fs         vfs.FS
	extractor  archive.Extractor
	stagingDir string
	scratchDir string
}

// New returns a Materializer. Archives are unpacked below scratchDir, which must be on the real filesystem.
func New(fs vfs.FS, extractor archive.Extractor, stagingDir, scratchDir string) *Materializer {
	return &Materializer{
		fs:         fs,
		extractor:  extractor,
		stagingDir: stagingDir,
		scratchDir: scratchDir,
	}
}

// StagingDir returns the root of the staging tree.
func (m *Materializer) StagingDir() string {
	return m.stagingDir
}

// Locate returns the results stored next to the marker in markerDir.
func (m *Materializer) Locate(markerDir string) ([]Location, error) {
	var locations []Location

	if archivePath := filepath.Join(markerDir, ResultsArchiveName); vfs.IsFile(m.fs, archivePath) {
		locations = append(locations, Location{Path: archivePath, MarkerDir: markerDir, Kind: Archive})
	}

	if dirPath := filepath.Join(markerDir, ResultsDirName); vfs.IsDir(m.fs, dirPath) {
		locations = append(locations, Location{Path: dirPath, MarkerDir: markerDir, Kind: Directory})
	}

	if len(locations) == 0 {
		return nil, errors.New(NoResultsError{Dir: markerDir})
	}

	return locations, nil
}

// Materialize copies the results at loc into the staging tree at the path of job and returns that directory.
// Any previous content of the destination is removed first, so a retry after an interrupted copy starts over.
func (m *Materializer) Materialize(ctx context.Context, l log.Logger, loc Location, job identity.Job) (string, error) {
	resultsDir := loc.Path

	if loc.Kind == Archive {
		scratch := filepath.Join(m.scratchDir, uuid.NewString())

		defer func() {
			if err := m.fs.RemoveAll(scratch); err != nil {
				l.Warnf("Failed to remove extracted results %s: %v", scratch, err)
			}
		}()

		l.Debugf("Extracting %s", loc.Path)

		if err := m.extractor.Extract(ctx, loc.Path, scratch); err != nil {
			return "", err
		}

		resultsDir = filepath.Join(scratch, ResultsDirName)
		if !vfs.IsDir(m.fs, resultsDir) {
			return "", errors.New(MissingResultsDirError{Archive: loc.Path})
		}
	}

	dest := job.Path(m.stagingDir)

	if err := vfs.RecreateDir(m.fs, dest); err != nil {
		return "", err
	}

	if err := vfs.CopyTree(m.fs, resultsDir, dest); err != nil {
		return "", err
	}

	l.Debugf("Staged %s results of %s in %s", loc.Kind, job, dest)

	return dest, nil
}
