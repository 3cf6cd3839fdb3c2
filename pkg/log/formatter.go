package log

import (
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// AllFormats lists the names accepted by `NewFormatter`.
var AllFormats = []string{FormatText, FormatJSON}

// NewFormatter returns the logrus formatter for the given format name.
func NewFormatter(name string, disableColors bool) (logrus.Formatter, error) {
	switch name {
	case FormatText, "":
		return &logrus.TextFormatter{
			DisableColors:    disableColors,
			FullTimestamp:    true,
			DisableQuote:     true,
			QuoteEmptyFields: true,
		}, nil
	case FormatJSON:
		return &logrus.JSONFormatter{}, nil
	}

	return nil, errors.Errorf("invalid log format %q, supported formats: %v", name, AllFormats)
}
