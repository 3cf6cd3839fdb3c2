package report

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	prefix               = "   "
	unitPrefixMultiplier = 2
	runSummaryHeader     = "❯❯ Publish Summary"
	publishedLabel       = "Published"
	failedLabel          = "Failed"
	skippedLabel         = "Skipped"
	separatorLineLength  = 28
	labelColumn          = 16
)

// Summary formats data from a report for output as a summary.
type Summary struct {
	firstRunStart        *time.Time
	lastRunEnd           *time.Time
	workingDir           string
	runs                 []*Run
	UnitsPublished       int
	UnitsFailed          int
	UnitsSkipped         int
	shouldColor          bool
	showUnitLevelSummary bool
}

// Summarize returns a summary of the report.
func (r *Report) Summarize() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &Summary{
		workingDir:           r.workingDir,
		shouldColor:          r.shouldColor,
		showUnitLevelSummary: r.showUnitLevelSummary,
		runs:                 slices.Clone(r.Runs),
	}

	for _, run := range r.Runs {
		summary.Update(run)
	}

	return summary
}

// TotalUnits returns the number of units processed.
func (s *Summary) TotalUnits() int {
	return len(s.runs)
}

// Update accounts for the given run.
func (s *Summary) Update(run *Run) {
	run.mu.RLock()
	defer run.mu.RUnlock()

	switch run.Result {
	case ResultPublished:
		s.UnitsPublished++
	case ResultFailed:
		s.UnitsFailed++
	case ResultSkipped:
		s.UnitsSkipped++
	}

	if s.firstRunStart == nil || run.Started.Before(*s.firstRunStart) {
		s.firstRunStart = &run.Started
	}

	if !run.Ended.IsZero() && (s.lastRunEnd == nil || run.Ended.After(*s.lastRunEnd)) {
		s.lastRunEnd = &run.Ended
	}
}

// TotalDuration returns the total duration of all runs in the report.
func (s *Summary) TotalDuration() time.Duration {
	if s.firstRunStart == nil || s.lastRunEnd == nil {
		return 0
	}

	return s.lastRunEnd.Sub(*s.firstRunStart)
}

// WriteSummary writes the summary to a writer. Nothing is written when no unit was processed.
func (r *Report) WriteSummary(w io.Writer) error {
	summary := r.Summarize()

	if summary.TotalUnits() == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	if err := summary.Write(w); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w)

	return err
}

// Write writes the summary to a writer.
func (s *Summary) Write(w io.Writer) error {
	colorizer := NewColorizer(s.shouldColor)

	header := fmt.Sprintf("%s  %s  %s",
		colorizer.headingTitleColorizer(runSummaryHeader),
		colorizer.headingUnitColorizer(fmt.Sprintf("%d units", s.TotalUnits())),
		colorizer.colorDuration(s.TotalDuration()),
	)

	if _, err := fmt.Fprintf(w, "%s\n%s%s\n", header, prefix, strings.Repeat("─", separatorLineLength)); err != nil {
		return err
	}

	categories := []struct {
		colorizer func(string) string
		result    Result
		label     string
		count     int
	}{
		{colorizer: colorizer.successColorizer, result: ResultPublished, label: publishedLabel, count: s.UnitsPublished},
		{colorizer: colorizer.failureColorizer, result: ResultFailed, label: failedLabel, count: s.UnitsFailed},
		{colorizer: colorizer.skipColorizer, result: ResultSkipped, label: skippedLabel, count: s.UnitsSkipped},
	}

	for _, category := range categories {
		if category.count == 0 {
			continue
		}

		label := category.colorizer(category.label)
		if _, err := fmt.Fprintf(w, "%s%s%s%s\n", prefix, label, s.padding(label, colorizer), strconv.Itoa(category.count)); err != nil {
			return err
		}

		if !s.showUnitLevelSummary {
			continue
		}

		for _, run := range s.runsWithResult(category.result) {
			if err := s.writeUnit(w, run, colorizer); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Summary) runsWithResult(result Result) []*Run {
	var runs []*Run

	for _, run := range s.runs {
		if run.Result == result {
			runs = append(runs, run)
		}
	}

	slices.SortFunc(runs, func(a, b *Run) int {
		return strings.Compare(a.Name, b.Name)
	})

	return runs
}

func (s *Summary) writeUnit(w io.Writer, run *Run, colorizer *Colorizer) error {
	name := run.Name
	if s.workingDir != "" {
		name = strings.TrimPrefix(name, s.workingDir+string(os.PathSeparator))
	}

	line := strings.Repeat(prefix, unitPrefixMultiplier) + name + "  " + colorizer.colorDuration(run.Ended.Sub(run.Started))

	if run.Cause != nil {
		line += "  " + colorizer.paddingColorizer(string(*run.Cause))
	} else if run.Reason != nil {
		line += "  " + colorizer.paddingColorizer(string(*run.Reason))
	}

	_, err := fmt.Fprintln(w, line)

	return err
}

func (s *Summary) padding(label string, colorizer *Colorizer) string {
	return colorizer.paddingColorizer(strings.Repeat(" ", max(2, labelColumn-visualLength(label)))) //nolint:mnd
}

// ansiRegex is used to remove ANSI escape codes from strings.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// visualLength calculates the visual length of a string by removing ANSI escape codes
func visualLength(text string) int {
	return len(ansiRegex.ReplaceAllString(text, ""))
}
