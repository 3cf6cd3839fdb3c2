package main

import (
	"context"
	"os"

	"github.com/input-output-hk/report-aggregator/cli"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/os/signal"
	"github.com/input-output-hk/report-aggregator/options"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// The main entrypoint for the report aggregator
func main() {
	opts := options.NewOptions()

	defer errors.Recover(checkForErrorsAndExit(opts))

	app := cli.NewApp(opts)

	ctx, stop := signal.NotifyContext(context.Background())
	err := app.RunContext(ctx, os.Args)

	stop()
	checkForErrorsAndExit(opts)(err)
}

// If there is an error, display it in the console and exit with a non-zero exit code. Otherwise, exit 0.
// The logger is read at exit time since the app replaces it once the global flags are parsed.
func checkForErrorsAndExit(opts *options.Options) func(error) {
	return func(err error) {
		if err == nil {
			os.Exit(0)
		}

		logError(opts.Logger, err)
		os.Exit(1)
	}
}

func logError(logger log.Logger, err error) {
	if errors.IsContextCanceled(err) {
		logger.Warn("Interrupted, unfinished units stay pending for the next run")
	}

	for _, err := range errors.UnwrapMultiErrors(err) {
		logger.Error(err.Error())
	}

	if errStack := errors.ErrorStack(err); errStack != "" {
		logger.Trace(errStack)
	}
}
