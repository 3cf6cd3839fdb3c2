package nightly

import (
	"context"

	"github.com/input-output-hk/report-aggregator/internal/github"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// Run downloads the results and coverage of the nightly runs that started within the fetch window.
func Run(ctx context.Context, l log.Logger, opts *options.Options, clientOpts ...github.Option) error {
	client, err := github.NewClient(opts.RepoSlug, append([]github.Option{github.WithToken(opts.GitHubToken)}, clientOpts...)...)
	if err != nil {
		return err
	}

	since := opts.Since()

	l.Infof("Downloading nightly results of %s started after %s", client.Repository(), since.Format("2006-01-02 15:04"))

	return client.FetchNightly(ctx, l, opts.ResultsDir, since)
}
