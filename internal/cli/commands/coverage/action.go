package coverage

import (
	"fmt"

	"github.com/input-output-hk/report-aggregator/internal/coverage"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

func Run(l log.Logger, opts *options.Options) error {
	result, err := coverage.NewPublisher(vfs.NewOSFS()).Publish(l, opts.ResultsDir, opts.WebDir)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(opts.Writer, "Coverage %d%% from %d files published to %s\n", result.Total, len(result.Files), result.ReportPath); err != nil {
		return errors.New(err)
	}

	return nil
}
