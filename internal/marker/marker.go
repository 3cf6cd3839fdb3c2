// Package marker implements the sentinel files that record which stage of the pipeline has completed for a
// results directory. Existence of a marker is the only state that matters, content is informational.
//
// The fetch stage writes `.downloaded` once the artifact bytes are fully on disk, the publish stage writes
// `.published` once the report built from them has been swapped into the web tree. A directory holding the
// first marker but not the second is pending work. Markers are only ever created, never removed, and are
// re-read from disk on every scan. The one exception is `.last_build`, kept in an aggregation directory and
// rewritten with it on every per-build publish.
package marker

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

// Kind is the file name of a marker.
type Kind string

const (
	// Downloaded is written by the fetch stage after the results artifact is complete.
	Downloaded Kind = ".downloaded"
	// Published is written after the results were published to the web tree.
	Published Kind = ".published"
	// CoverageDownloaded is written by the fetch stage after the coverage artifact is complete.
	CoverageDownloaded Kind = ".cov_downloaded"
	// TestrunName holds the human readable name of a regression testrun.
	TestrunName Kind = "testrun_name.txt"
	// LastBuild holds the id of the build last published from an aggregation directory.
	LastBuild Kind = ".last_build"
)

// Tracker reads and writes markers on a filesystem.
type Tracker struct {
	fs vfs.FS
}

// NewTracker returns a tracker backed by the given filesystem.
func NewTracker(fs vfs.FS) *Tracker {
	return &Tracker{fs: fs}
}

// Path returns the location of the marker of the given kind in dir.
func Path(dir string, kind Kind) string {
	return filepath.Join(dir, string(kind))
}

// Has reports whether the marker exists in dir.
func (tracker *Tracker) Has(dir string, kind Kind) bool {
	exists, err := vfs.FileExists(tracker.fs, Path(dir, kind))

	return err == nil && exists
}

// Write creates the marker in dir. An existing marker is overwritten with the new content.
func (tracker *Tracker) Write(dir string, kind Kind, content string) error {
	if err := tracker.fs.MkdirAll(dir, vfs.DefaultDirPerm); err != nil {
		return errors.New(err)
	}

	return errors.New(vfs.WriteFile(tracker.fs, Path(dir, kind), []byte(content), vfs.DefaultFilePerm))
}

// Read returns the content of the marker in dir.
func (tracker *Tracker) Read(dir string, kind Kind) (string, error) {
	data, err := vfs.ReadFile(tracker.fs, Path(dir, kind))
	if err != nil {
		return "", errors.New(err)
	}

	return string(data), nil
}

// Find returns every directory under root holding the marker of the given kind, sorted.
func (tracker *Tracker) Find(root string, kind Kind) ([]string, error) {
	var dirs []string

	err := afero.Walk(tracker.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && info.Name() == string(kind) {
			dirs = append(dirs, filepath.Dir(path))
		}

		return nil
	})
	if err != nil {
		return nil, errors.New(err)
	}

	sort.Strings(dirs)

	return dirs, nil
}

// NewWork returns the directories under root that were downloaded but not yet published, sorted.
// Directories still being fetched (no marker) or already published are skipped.
func (tracker *Tracker) NewWork(root string) ([]string, error) {
	downloaded, err := tracker.Find(root, Downloaded)
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(downloaded))

	for _, dir := range downloaded {
		if tracker.Has(dir, Published) {
			continue
		}

		pending = append(pending, dir)
	}

	return pending, nil
}
