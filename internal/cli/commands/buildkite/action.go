package buildkite

import (
	"context"

	"github.com/input-output-hk/report-aggregator/internal/buildkite"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// Run downloads the results of the nightly builds that finished within the fetch window.
func Run(ctx context.Context, l log.Logger, opts *options.Options, clientOpts ...buildkite.Option) error {
	client := buildkite.NewClient(append([]buildkite.Option{
		buildkite.WithOrganization(opts.Organization),
		buildkite.WithToken(opts.BuildkiteToken),
	}, clientOpts...)...)

	return client.FetchNightly(ctx, l.WithField("organization", opts.Organization), opts.ResultsDir, opts.Since())
}
