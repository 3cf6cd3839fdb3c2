// Package options provides a set of options that configure the behavior of the report aggregator.
package options

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/input-output-hk/report-aggregator/internal/aggregate"
	"github.com/input-output-hk/report-aggregator/internal/allure"
	"github.com/input-output-hk/report-aggregator/internal/buildkite"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/github"
	"github.com/input-output-hk/report-aggregator/internal/publish"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

const (
	// DefaultTimedeltaMins is how far back the nightly fetchers look for finished runs.
	DefaultTimedeltaMins = 48 * 60

	// DefaultTestrunTimedeltaMins is how far back the testrun fetcher looks for runs of the testrun.
	DefaultTestrunTimedeltaMins = 10 * 24 * 60

	// DefaultAggregateDirName is the aggregation tree created next to the results directory when none is set.
	DefaultAggregateDirName = "aggregated"

	defaultLogLevel = log.WarnLevel
)

// Options represents options that configure the behavior of the report aggregator.
type Options struct {
	// Writer is the output of summaries.
	Writer io.Writer
	// ErrWriter is the output of logs.
	ErrWriter io.Writer
	// Logger is set up from LogLevel and LogFormat before any command runs.
	Logger log.Logger
	// Now is the clock used for the fetch windows.
	Now func() time.Time

	LogLevel  string
	LogFormat string

	// ResultsDir is the base directory of the downloaded results.
	ResultsDir string
	// WebDir is the base directory of the published reports.
	WebDir string
	// AggregateDir is the persistent aggregation tree, next to ResultsDir when empty.
	AggregateDir string
	// TempDir holds the scratch trees of a publish run, the system default when empty.
	TempDir string
	// LockFile, when set, is held during a publish run.
	LockFile string
	// ReportFile, when set, receives the outcome of every unit of a publish run as CSV.
	ReportFile string

	// TimedeltaMins is the window, in minutes before now, in which fetched runs must have started.
	TimedeltaMins int

	RepoSlug     string
	TestrunName  string
	Organization string

	GitHubToken    string
	BuildkiteToken string

	Aggregate       bool
	ForceRegenerate bool
	AllureBinary    string
	BadgeFormat     string
}

// NewOptions returns Options with the defaults and the standard output streams.
func NewOptions() *Options {
	return NewOptionsWithWriters(os.Stdout, os.Stderr)
}

// NewOptionsWithWriters returns Options with the defaults writing to the given streams.
func NewOptionsWithWriters(stdout, stderr io.Writer) *Options {
	return &Options{
		Writer:        stdout,
		ErrWriter:     stderr,
		Logger:        log.New(log.WithOutput(stderr), log.WithLevel(defaultLogLevel)),
		Now:           time.Now,
		LogLevel:      defaultLogLevel.String(),
		LogFormat:     log.FormatText,
		TimedeltaMins: DefaultTimedeltaMins,
		RepoSlug:      github.DefaultRepository,
		Organization:  buildkite.DefaultOrganization,
		AllureBinary:  allure.DefaultBinary,
		BadgeFormat:   string(publish.BadgeCanonical),
	}
}

// Since returns the start of the fetch window.
func (opts *Options) Since() time.Time {
	return opts.Now().Add(-time.Duration(opts.TimedeltaMins) * time.Minute)
}

// Mode returns how builds of the same job are combined in a publish run.
func (opts *Options) Mode() aggregate.Mode {
	if opts.Aggregate {
		return aggregate.ModeTestrun
	}

	return aggregate.ModePerBuild
}

// Normalize expands `~` in the directory options and fills in the derived defaults.
func (opts *Options) Normalize() error {
	for _, path := range []*string{&opts.ResultsDir, &opts.WebDir, &opts.AggregateDir, &opts.TempDir, &opts.LockFile, &opts.ReportFile} {
		if *path == "" {
			continue
		}

		expanded, err := homedir.Expand(*path)
		if err != nil {
			return errors.New(err)
		}

		*path = filepath.Clean(expanded)
	}

	if opts.AggregateDir == "" && opts.ResultsDir != "" {
		opts.AggregateDir = filepath.Join(filepath.Dir(opts.ResultsDir), DefaultAggregateDirName)
	}

	return nil
}
