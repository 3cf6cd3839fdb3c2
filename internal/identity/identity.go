// Package identity derives the canonical job identity of a set of test results from its location in a directory tree.
//
// The trees handled by the pipeline are laid out as
//
//	<base>/<job_name>[/<revision>]/<build_id>[/<step>]/allure-results(.tar.xz)
//
// Every segment but the job name is optional, so the meaning of a segment is decided purely by its depth relative to
// the base directory. Callers must pass the base directory consistently: the same path resolved against a different
// base yields a different identity, and the unchecked resolvers have no way of noticing. A job directory whose name
// starts with the step prefix, e.g. `steps-smoke`, is read as a step. The checked resolvers reject every path the
// layout cannot reproduce, which covers both cases along with paths nested deeper than the layout.
package identity

import (
	"path/filepath"
	"strings"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

// StepPrefix marks a path segment holding the step (shard) of a multi-artifact run, e.g. "step1".
const StepPrefix = "step"

// Job is the canonical identity of one logical test run's results.
type Job struct {
	JobName  string `json:"job_name"`
	Revision string `json:"revision,omitempty"`
	BuildID  string `json:"build_id,omitempty"`
	Step     string `json:"step,omitempty"`
}

// Parts returns the non-empty components in the fixed order job_name, revision, build_id, step.
func (job Job) Parts() []string {
	parts := make([]string, 0, 4) //nolint:mnd

	for _, part := range []string{job.JobName, job.Revision, job.BuildID, job.Step} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return parts
}

// Path returns the location of the job under the given tree root.
func (job Job) Path(root string) string {
	return filepath.Join(append([]string{root}, job.Parts()...)...)
}

// WithoutBuild returns the identity with the build id dropped, the key under which shards and builds are aggregated.
func (job Job) WithoutBuild() Job {
	job.BuildID = ""
	return job
}

func (job Job) String() string {
	return strings.Join(job.Parts(), "/")
}

// IsStep reports whether the directory name denotes a step segment.
func IsStep(name string) bool {
	return strings.HasPrefix(name, StepPrefix)
}

// cursor walks a path from the leaf upward.
type cursor struct {
	dir  string
	base string
}

func (c *cursor) name() string {
	return filepath.Base(c.dir)
}

func (c *cursor) up() {
	c.dir = filepath.Dir(c.dir)
}

func (c *cursor) parentIsBase() bool {
	return filepath.Dir(c.dir) == c.base
}

// rule consumes zero or more segments at the cursor and fills part of the identity.
type rule func(c *cursor, job *Job)

// stepRule records the current segment as the step if it carries the step prefix.
func stepRule(c *cursor, job *Job) {
	if IsStep(c.name()) {
		job.Step = c.name()
		c.up()
	}
}

// buildRule records the current segment as the build id.
func buildRule(c *cursor, job *Job) {
	job.BuildID = c.name()
	c.up()
}

// revisionRule records the current segment as the revision, unless it sits right below the base directory,
// in which case it is the job name and there is no revision.
func revisionRule(c *cursor, job *Job) {
	if c.parentIsBase() {
		return
	}

	job.Revision = c.name()
	c.up()
}

// jobRule records the current segment as the job name.
func jobRule(c *cursor, job *Job) {
	job.JobName = c.name()
}

var (
	resultRules    = []rule{stepRule, buildRule, revisionRule, jobRule}
	directoryRules = []rule{stepRule, revisionRule, jobRule}
)

func resolve(start, base string, rules []rule) Job {
	c := &cursor{dir: filepath.Clean(start), base: filepath.Clean(base)}
	job := Job{}

	for _, apply := range rules {
		apply(c, &job)
	}

	return job
}

// FromResultPath derives the identity from the path of a results artifact, either the archive file or the unpacked
// results directory, e.g.
//
//	nightly/506/allure-results.tar.xz -> {nightly, "", 506, ""}
//	babbage_dbsync/<sha>/1664632102/allure-results -> {babbage_dbsync, <sha>, 1664632102, ""}
//	nightly-upgrade/506/step1/allure-results.tar.xz -> {nightly-upgrade, "", 506, step1}
//
// Containment in baseDir is not checked, use Resolve when the path comes from outside.
func FromResultPath(path, baseDir string) Job {
	return resolve(filepath.Dir(filepath.Clean(path)), baseDir, resultRules)
}

// FromDirectory derives the identity of a results directory inside a tree that carries no build ids,
// such as the aggregation tree, e.g.
//
//	nightly -> {nightly, "", "", ""}
//	babbage_dbsync/<sha> -> {babbage_dbsync, <sha>, "", ""}
//	nightly-upgrade/step1 -> {nightly-upgrade, "", "", step1}
func FromDirectory(dir, baseDir string) Job {
	return resolve(dir, baseDir, directoryRules)
}

// PathOutsideBaseError is returned when a path does not lie strictly below its base directory.
type PathOutsideBaseError struct {
	Path string
	Base string
}

func (err PathOutsideBaseError) Error() string {
	return "path " + err.Path + " is not located under " + err.Base
}

// ResolveResultPath is FromResultPath with the containment precondition validated.
func ResolveResultPath(path, baseDir string) (Job, error) {
	// the artifact, the build id and the job name are mandatory
	if err := checkDepth(path, baseDir, 3); err != nil { //nolint:mnd
		return Job{}, err
	}

	job := FromResultPath(path, baseDir)

	if err := checkContained(job, filepath.Dir(filepath.Clean(path)), path, baseDir); err != nil {
		return Job{}, err
	}

	return job, nil
}

// ResolveDirectory is FromDirectory with the containment precondition validated.
func ResolveDirectory(dir, baseDir string) (Job, error) {
	if err := checkDepth(dir, baseDir, 1); err != nil {
		return Job{}, err
	}

	job := FromDirectory(dir, baseDir)

	if err := checkContained(job, dir, dir, baseDir); err != nil {
		return Job{}, err
	}

	return job, nil
}

func checkDepth(path, baseDir string, minDepth int) error {
	rel, err := filepath.Rel(filepath.Clean(baseDir), filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New(PathOutsideBaseError{Path: path, Base: baseDir})
	}

	if depth := len(strings.Split(rel, string(filepath.Separator))); depth < minDepth {
		return errors.Errorf("path %s is too shallow below %s to carry a job identity", path, baseDir)
	}

	return nil
}

// checkContained verifies that the segments consumed by the rules are exactly those between baseDir and start.
// Rules that run out of segments walk above baseDir, and the identity then no longer maps back onto start.
func checkContained(job Job, start, path, baseDir string) error {
	if job.Path(filepath.Clean(baseDir)) != filepath.Clean(start) {
		return errors.New(PathOutsideBaseError{Path: path, Base: baseDir})
	}

	return nil
}
