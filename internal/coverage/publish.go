package coverage

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-zglob"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// NightlyPattern matches the directories of the nightly workflows and pipelines.
	NightlyPattern = "*tests-nightly*"

	// LatestFileName is the symlink to the newest report.
	LatestFileName = "coverage.json"
	// TotalFileName holds the rounded top level coverage percentage.
	TotalFileName = "coverage.txt"

	reportIndent = "    "
)

// NoCoverageError is returned when no nightly directory holds a coverage file.
type NoCoverageError struct {
	Dir string
}

func (err NoCoverageError) Error() string {
	return "no coverage files found in " + err.Dir
}

// ReportFileName returns the name of the report published on the given day.
func ReportFileName(day time.Time) string {
	return "coverage_" + day.Format("20060102") + ".json"
}

// Publisher merges the latest coverage of every nightly workflow and publishes the report.
type Publisher struct {
	fs      vfs.FS
	tracker *marker.Tracker
	now     func() time.Time
}

// Option is a function that configures a Publisher.
type Option func(*Publisher)

// WithClock sets the clock that dates the reports.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// NewPublisher returns a Publisher. Discovery globs the real filesystem, fs must be backed by it.
func NewPublisher(fs vfs.FS, opts ...Option) *Publisher {
	publisher := &Publisher{
		fs:      fs,
		tracker: marker.NewTracker(fs),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(publisher)
	}

	return publisher
}

// Result describes a published coverage report.
type Result struct {
	Files      []string
	ReportPath string
	Total      int
}

// Discover returns the newest downloaded coverage file of every nightly directory below resultsDir.
func (p *Publisher) Discover(l log.Logger, resultsDir string) ([]string, error) {
	if !vfs.IsDir(p.fs, resultsDir) {
		return nil, nil
	}

	matches, err := zglob.Glob(filepath.Join(resultsDir, "**", NightlyPattern))
	if err != nil {
		return nil, errors.New(err)
	}

	sort.Strings(matches)

	var (
		files     []string
		workflows []string
	)

	for _, dir := range matches {
		if !vfs.IsDir(p.fs, dir) || nestedIn(dir, workflows) {
			continue
		}

		workflows = append(workflows, dir)

		markerDirs, err := p.tracker.Find(dir, marker.CoverageDownloaded)
		if err != nil {
			return nil, err
		}

		sort.Slice(markerDirs, func(i, j int) bool {
			return comparePaths(markerDirs[i], markerDirs[j]) > 0
		})

		for _, markerDir := range markerDirs {
			path := filepath.Join(markerDir, FileName)
			if vfs.IsFile(p.fs, path) {
				l.Debugf("Using coverage file %s", path)
				files = append(files, path)

				break
			}
		}
	}

	return files, nil
}

// Publish merges the discovered coverage into today's report in webDir, points the latest report symlink to
// it and records the rounded total.
func (p *Publisher) Publish(l log.Logger, resultsDir, webDir string) (*Result, error) {
	files, err := p.Discover(l, resultsDir)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, errors.New(NoCoverageError{Dir: resultsDir})
	}

	merged := "{}"

	for _, path := range files {
		data, err := vfs.ReadFile(p.fs, path)
		if err != nil {
			return nil, errors.New(err)
		}

		if err := Validate(path, data); err != nil {
			return nil, err
		}

		if merged, err = Merge(merged, string(data)); err != nil {
			return nil, errors.WithStackTraceAndPrefix(err, "failed to merge %s", path)
		}
	}

	report, err := NewReport(RootCommand, merged)
	if err != nil {
		return nil, err
	}

	total, content := report.Total(RootCommand)

	var indented bytes.Buffer
	if err := json.Indent(&indented, []byte(content), "", reportIndent); err != nil {
		return nil, errors.New(err)
	}

	if err := p.fs.MkdirAll(webDir, vfs.DefaultDirPerm); err != nil {
		return nil, errors.New(err)
	}

	name := ReportFileName(p.now())
	reportPath := filepath.Join(webDir, name)

	if err := vfs.WriteFile(p.fs, reportPath, indented.Bytes(), vfs.DefaultFilePerm); err != nil {
		return nil, errors.New(err)
	}

	l.Infof("Coverage report published to %s", reportPath)

	if err := p.linkLatest(webDir, name); err != nil {
		return nil, err
	}

	if total != 0 {
		if err := vfs.WriteFile(p.fs, filepath.Join(webDir, TotalFileName), []byte(strconv.Itoa(total)), vfs.DefaultFilePerm); err != nil {
			return nil, errors.New(err)
		}
	}

	return &Result{Files: files, ReportPath: reportPath, Total: total}, nil
}

// linkLatest points the latest report symlink to name, relative to the web directory.
func (p *Publisher) linkLatest(webDir, name string) error {
	latest := filepath.Join(webDir, LatestFileName)

	if _, err := vfs.Readlink(p.fs, latest); err == nil {
		if err := p.fs.Remove(latest); err != nil {
			return errors.New(err)
		}
	}

	return errors.New(vfs.Symlink(p.fs, name, latest))
}

func nestedIn(dir string, parents []string) bool {
	for _, parent := range parents {
		if strings.HasPrefix(dir, parent+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// comparePaths orders paths component by component, numerically when both components are numbers.
func comparePaths(a, b string) int {
	partsA := strings.Split(filepath.ToSlash(a), "/")
	partsB := strings.Split(filepath.ToSlash(b), "/")

	for i := 0; i < len(partsA) && i < len(partsB); i++ {
		if partsA[i] == partsB[i] {
			continue
		}

		numA, errA := strconv.Atoi(partsA[i])
		numB, errB := strconv.Atoi(partsB[i])

		if errA == nil && errB == nil && numA != numB {
			if numA < numB {
				return -1
			}

			return 1
		}

		return strings.Compare(partsA[i], partsB[i])
	}

	return len(partsA) - len(partsB)
}
