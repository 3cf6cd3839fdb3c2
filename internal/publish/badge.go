package publish

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/input-output-hk/report-aggregator/internal/allure"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

// BadgeFileName is the name of the badge descriptor in the report directory.
const BadgeFileName = "badge.json"

const (
	ColorFailure = "red"
	ColorSuccess = "green"
)

// BadgeFormat selects the message of the badge.
type BadgeFormat string

const (
	// BadgeCanonical reports passed, failed and broken counts.
	BadgeCanonical BadgeFormat = "canonical"
	// BadgeLegacy reports passed and failed counts only.
	BadgeLegacy BadgeFormat = "legacy"
)

// AllBadgeFormats lists the supported badge formats.
var AllBadgeFormats = []BadgeFormat{BadgeCanonical, BadgeLegacy}

// ParseBadgeFormat returns the badge format with the given name.
func ParseBadgeFormat(name string) (BadgeFormat, error) {
	for _, format := range AllBadgeFormats {
		if string(format) == name {
			return format, nil
		}
	}

	return "", errors.Errorf("invalid badge format %q, supported formats: %v", name, AllBadgeFormats)
}

// Statistic holds the test counts of a report.
type Statistic struct {
	Passed int64
	Failed int64
	Broken int64
}

// Badge is the shields.io endpoint descriptor published next to every report.
type Badge struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
}

// NewBadge returns the badge of a report with the given statistic.
func NewBadge(stat Statistic, format BadgeFormat) Badge {
	var message string

	if format == BadgeLegacy {
		message = fmt.Sprintf("%d passed, %d failed", stat.Passed, stat.Failed)
	} else {
		message = fmt.Sprintf("%d passed, %d failed, %d broken", stat.Passed, stat.Failed, stat.Broken)
	}

	color := ColorSuccess
	if stat.Failed > 0 {
		color = ColorFailure
	}

	return Badge{SchemaVersion: 1, Label: "", Message: message, Color: color}
}

// SummaryError means that the generated report has no usable summary.
type SummaryError struct {
	Path   string
	Reason string
}

func (err SummaryError) Error() string {
	return "invalid report summary " + err.Path + ": " + err.Reason
}

// ReadStatistic reads the test counts from the summary of the generated report in reportDir.
// Counts missing from the statistic default to zero, a missing statistic is an error.
func ReadStatistic(fs vfs.FS, reportDir string) (Statistic, error) {
	path := filepath.Join(reportDir, filepath.FromSlash(allure.SummaryPath))

	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return Statistic{}, errors.New(SummaryError{Path: path, Reason: err.Error()})
	}

	if !gjson.ValidBytes(data) {
		return Statistic{}, errors.New(SummaryError{Path: path, Reason: "not a JSON document"})
	}

	stat := gjson.GetBytes(data, "statistic")
	if !stat.IsObject() {
		return Statistic{}, errors.New(SummaryError{Path: path, Reason: "no statistic object"})
	}

	return Statistic{
		Passed: stat.Get("passed").Int(),
		Failed: stat.Get("failed").Int(),
		Broken: stat.Get("broken").Int(),
	}, nil
}

// WriteBadge writes the badge descriptor of the report in reportDir and returns it.
func WriteBadge(fs vfs.FS, reportDir string, format BadgeFormat) (Badge, error) {
	stat, err := ReadStatistic(fs, reportDir)
	if err != nil {
		return Badge{}, err
	}

	badge := NewBadge(stat, format)

	data, err := json.MarshalIndent(badge, "", "    ")
	if err != nil {
		return Badge{}, errors.New(err)
	}

	if err := vfs.WriteFile(fs, filepath.Join(reportDir, BadgeFileName), data, vfs.DefaultFilePerm); err != nil {
		return Badge{}, errors.New(err)
	}

	return badge, nil
}
