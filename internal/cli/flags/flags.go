// Package flags contains the flags shared by several commands.
package flags

import (
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli/v2"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/options"
)

// EnvVarPrefix is prepended to the environment variable names of all flags.
const EnvVarPrefix = "RA_"

const (
	LogLevelFlagName  = "log-level"
	LogFormatFlagName = "log-format"

	ResultsDirFlagName  = "results-dir"
	ResultsDirFlagAlias = "d"

	WebDirFlagName  = "web-dir"
	WebDirFlagAlias = "w"

	TimedeltaMinsFlagName  = "timedelta-mins"
	TimedeltaMinsFlagAlias = "m"

	RepoSlugFlagName  = "repo-slug"
	RepoSlugFlagAlias = "r"

	GitHubTokenFlagName    = "github-token"
	BuildkiteTokenFlagName = "buildkite-token"
)

// DirNotFoundError is returned when a directory flag points to something that is not an existing directory.
type DirNotFoundError struct {
	Flag string
	Dir  string
}

func (err DirNotFoundError) Error() string {
	return "directory " + err.Dir + " given to --" + err.Flag + " does not exist"
}

// EnvVars returns the environment variables of the flag with the given name, e.g. `RA_RESULTS_DIR`.
func EnvVars(name string) []string {
	return []string{EnvVarPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

// NewResultsDirFlag returns the required flag of the results base directory.
func NewResultsDirFlag(opts *options.Options, usage string) cli.Flag {
	return &cli.StringFlag{
		Name:        ResultsDirFlagName,
		Aliases:     []string{ResultsDirFlagAlias},
		EnvVars:     EnvVars(ResultsDirFlagName),
		Usage:       usage,
		Required:    true,
		TakesFile:   true,
		Destination: &opts.ResultsDir,
		Action:      existingDir(ResultsDirFlagName),
	}
}

// NewWebDirFlag returns the required flag of the web base directory.
func NewWebDirFlag(opts *options.Options, usage string) cli.Flag {
	return &cli.StringFlag{
		Name:        WebDirFlagName,
		Aliases:     []string{WebDirFlagAlias},
		EnvVars:     EnvVars(WebDirFlagName),
		Usage:       usage,
		Required:    true,
		TakesFile:   true,
		Destination: &opts.WebDir,
		Action:      existingDir(WebDirFlagName),
	}
}

// NewTimedeltaMinsFlag returns the flag of the fetch window.
func NewTimedeltaMinsFlag(opts *options.Options, defaultMins int) cli.Flag {
	return &cli.IntFlag{
		Name:        TimedeltaMinsFlagName,
		Aliases:     []string{TimedeltaMinsFlagAlias},
		EnvVars:     EnvVars(TimedeltaMinsFlagName),
		Usage:       "Look for runs started from `TIMEDELTA_MINS` in the past until now (in minutes).",
		Value:       defaultMins,
		Destination: &opts.TimedeltaMins,
		Action: func(_ *cli.Context, mins int) error {
			if mins < 0 {
				return errors.Errorf("--%s must not be negative, got %d", TimedeltaMinsFlagName, mins)
			}

			return nil
		},
	}
}

// NewRepoSlugFlag returns the flag of the GitHub repository to fetch from.
func NewRepoSlugFlag(opts *options.Options) cli.Flag {
	return &cli.StringFlag{
		Name:        RepoSlugFlagName,
		Aliases:     []string{RepoSlugFlagAlias},
		EnvVars:     EnvVars(RepoSlugFlagName),
		Usage:       "Repository slug to download results from.",
		Value:       opts.RepoSlug,
		Destination: &opts.RepoSlug,
	}
}

// NewGitHubTokenFlag returns the flag of the GitHub API token, read from GITHUB_TOKEN by default.
func NewGitHubTokenFlag(opts *options.Options) cli.Flag {
	return &cli.StringFlag{
		Name:        GitHubTokenFlagName,
		EnvVars:     append(EnvVars(GitHubTokenFlagName), "GITHUB_TOKEN"),
		Usage:       "GitHub API token.",
		Hidden:      true,
		Destination: &opts.GitHubToken,
	}
}

// NewBuildkiteTokenFlag returns the flag of the Buildkite API token, read from BUILDKITE_TOKEN by default.
func NewBuildkiteTokenFlag(opts *options.Options) cli.Flag {
	return &cli.StringFlag{
		Name:        BuildkiteTokenFlagName,
		EnvVars:     append(EnvVars(BuildkiteTokenFlagName), "BUILDKITE_TOKEN"),
		Usage:       "Buildkite API token.",
		Hidden:      true,
		Destination: &opts.BuildkiteToken,
	}
}

func existingDir(flag string) func(*cli.Context, string) error {
	return func(_ *cli.Context, dir string) error {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return errors.New(err)
		}

		if !vfs.IsDir(vfs.NewOSFS(), expanded) {
			return errors.New(DirNotFoundError{Flag: flag, Dir: dir})
		}

		return nil
	}
}
