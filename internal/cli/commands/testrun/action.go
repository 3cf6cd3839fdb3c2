package testrun

import (
	"context"

	"github.com/input-output-hk/report-aggregator/internal/github"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// Run downloads the results of every regression run of the testrun that started within the fetch window.
func Run(ctx context.Context, l log.Logger, opts *options.Options, clientOpts ...github.Option) error {
	client, err := github.NewClient(opts.RepoSlug, append([]github.Option{github.WithToken(opts.GitHubToken)}, clientOpts...)...)
	if err != nil {
		return err
	}

	l = l.WithField("testrun", opts.TestrunName)
	l.Infof("Downloading regression results of %s", client.Repository())

	return client.FetchTestrun(ctx, l, opts.ResultsDir, opts.TestrunName, opts.Since())
}
