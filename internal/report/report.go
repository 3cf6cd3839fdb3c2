// Package report collects the outcome of every unit of work of a publish run and renders a summary of it.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Report captures data for a report/summary.
type Report struct {
	workingDir           string
	Runs                 []*Run
	mu                   sync.RWMutex
	shouldColor          bool
	showUnitLevelSummary bool
}

// Run captures data for a run, the processing of one unit of work.
type Run struct {
	Started time.Time
	Ended   time.Time
	Reason  *Reason
	Cause   *Cause
	Name    string
	Result  Result
	mu      sync.RWMutex
}

// Result captures the result of a run.
type Result string

// Reason captures the reason for a run.
type Reason string

// Cause captures the cause of a run.
type Cause string

const (
	ResultPublished Result = "published"
	ResultFailed    Result = "failed"
	ResultSkipped   Result = "skipped"
)

const (
	ReasonRunError     Reason = "run error"
	ReasonNoResults    Reason = "no results"
	ReasonInvalidInput Reason = "invalid input"
	ReasonBadArtifact  Reason = "bad artifact"
	ReasonSuperseded   Reason = "superseded by a newer build"
)

// Option configures a Report.
type Option func(*Report)

// WithWorkingDir strips dir from the unit names in the summary.
func WithWorkingDir(dir string) Option {
	return func(r *Report) {
		r.workingDir = dir
	}
}

// WithColor enables colored output.
func WithColor(shouldColor bool) Option {
	return func(r *Report) {
		r.shouldColor = shouldColor
	}
}

// WithShowUnitLevelSummary lists every unit in the summary.
func WithShowUnitLevelSummary(show bool) Option {
	return func(r *Report) {
		r.showUnitLevelSummary = show
	}
}

// NewReport creates a new report.
func NewReport(opts ...Option) *Report {
	r := &Report{
		Runs: make([]*Run, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewRun creates a new run.
func NewRun(name string) *Run {
	return &Run{
		Name:    name,
		Started: time.Now(),
	}
}

// ErrRunAlreadyExists is returned when a run already exists in the report.
var ErrRunAlreadyExists = errors.New("run already exists")

// ErrRunNotFound is returned when a run is not found in the report.
var ErrRunNotFound = errors.New("run not found")

// AddRun adds a run to the report.
// If the run already exists, it returns the ErrRunAlreadyExists error.
func (r *Report) AddRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existingRun := range r.Runs {
		if existingRun.Name == run.Name {
			return fmt.Errorf("%w: %s", ErrRunAlreadyExists, run.Name)
		}
	}

	r.Runs = append(r.Runs, run)

	return nil
}

// GetRun returns a run from the report.
func (r *Report) GetRun(name string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, run := range r.Runs {
		if run.Name == name {
			return run, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, name)
}

// EndRun ends a run.
// If the run does not exist, it returns the ErrRunNotFound error.
// By default, the run is assumed to have been published. To change this, pass WithResult to the function.
func (r *Report) EndRun(name string, endOptions ...EndOption) error {
	run, err := r.GetRun(name)
	if err != nil {
		return err
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	run.Ended = time.Now()
	run.Result = ResultPublished

	for _, endOption := range endOptions {
		endOption(run)
	}

	return nil
}

// EndOption are optional configurations for ending a run.
type EndOption func(*Run)

// WithResult sets the result of a run.
func WithResult(result Result) EndOption {
	return func(run *Run) {
		run.Result = result
	}
}

// WithReason sets the reason of a run.
func WithReason(reason Reason) EndOption {
	return func(run *Run) {
		run.Reason = &reason
	}
}

// WithCauseError sets the cause of a run to the message of err.
func WithCauseError(err error) EndOption {
	return func(run *Run) {
		if err == nil {
			return
		}

		cause := Cause(err.Error())
		run.Cause = &cause
	}
}

// Failed reports whether any run of the report failed.
func (r *Report) Failed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, run := range r.Runs {
		if run.Result == ResultFailed {
			return true
		}
	}

	return false
}

// WriteCSV writes the report to a writer in CSV format.
func (r *Report) WriteCSV(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write([]string{"Name", "Started", "Ended", "Result", "Reason", "Cause"}); err != nil {
		return err
	}

	for _, run := range r.Runs {
		run.mu.RLock()

		reason := ""
		if run.Reason != nil {
			reason = string(*run.Reason)
		}

		cause := ""
		if run.Cause != nil {
			cause = string(*run.Cause)
		}

		record := []string{
			run.Name,
			run.Started.Format(time.RFC3339),
			run.Ended.Format(time.RFC3339),
			string(run.Result),
			reason,
			cause,
		}

		run.mu.RUnlock()

		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()

	return csvWriter.Error()
}
