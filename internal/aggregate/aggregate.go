// Package aggregate merges staged results of the same logical job into the persistent aggregation tree.
package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/identity"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// Mode selects how builds of the same job are combined.
type Mode int

const (
	// ModePerBuild publishes every build on its own. The destination is cleared before each build is copied in.
	ModePerBuild Mode = iota
	// ModeTestrun layers every build of a job and revision onto one running aggregate that is never cleared.
	ModeTestrun
)

func (mode Mode) String() string {
	if mode == ModeTestrun {
		return "testrun"
	}

	return "per-build"
}

// Staged is a directory of results in the staging tree.
type Staged struct {
	// Dir holds the staged results.
	Dir string
	// Job is the identity the results were staged under.
	Job identity.Job
	// Sources are the marker directories the results were materialized from.
	Sources []string
}

// Group is one destination directory of the aggregation tree along with the inputs layered into it.
type Group struct {
	Dir    string
	Job    identity.Job
	Inputs []Staged
	// Clear tells whether the destination is emptied before the inputs are copied in.
	Clear bool
}

// Sources returns the marker directories of all inputs of the group.
func (group Group) Sources() []string {
	var sources []string

	for _, input := range group.Inputs {
		sources = append(sources, input.Sources...)
	}

	return sources
}

// Aggregator copies staged results into the aggregation tree.
type Aggregator struct {
	fs vfs.FS
}

// New returns an Aggregator working on the given filesystem.
func New(fs vfs.FS) *Aggregator {
	return &Aggregator{fs: fs}
}

// Plan groups the staged directories by their identity without the build id and returns the groups in a
// deterministic order. Inputs are ordered by build id, then step, so that later builds are layered onto
// earlier ones. In ModePerBuild every input gets a group of its own, in the same order.
func (a *Aggregator) Plan(staged []Staged, destRoot string, mode Mode) []Group {
	inputs := make([]Staged, len(staged))
	copy(inputs, staged)

	sort.SliceStable(inputs, func(i, j int) bool {
		return less(inputs[i], inputs[j])
	})

	if mode == ModePerBuild {
		groups := make([]Group, 0, len(inputs))

		for _, input := range inputs {
			job := input.Job.WithoutBuild()
			groups = append(groups, Group{Dir: job.Path(destRoot), Job: job, Inputs: []Staged{input}, Clear: true})
		}

		return groups
	}

	var (
		groups []Group
		index  = map[identity.Job]int{}
	)

	for _, input := range inputs {
		job := input.Job.WithoutBuild()

		i, ok := index[job]
		if !ok {
			i = len(groups)
			index[job] = i
			groups = append(groups, Group{Dir: job.Path(destRoot), Job: job})
		}

		groups[i].Inputs = append(groups[i].Inputs, input)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Job, groups[j].Job

		if a.JobName != b.JobName {
			return a.JobName < b.JobName
		}

		if a.Revision != b.Revision {
			return a.Revision < b.Revision
		}

		return lessStep(a.Step, b.Step)
	})

	return groups
}

// Apply copies the inputs of the group into its destination. Files already in the destination are only
// added to or updated, never deleted, unless the group asks for the destination to be cleared first.
func (a *Aggregator) Apply(l log.Logger, group Group) error {
	if group.Clear {
		if err := vfs.RecreateDir(a.fs, group.Dir); err != nil {
			return err
		}
	} else if err := a.fs.MkdirAll(group.Dir, vfs.DefaultDirPerm); err != nil {
		return errors.New(err)
	}

	for _, input := range group.Inputs {
		l.Debugf("Merging %s into %s", input.Dir, group.Dir)

		if err := vfs.CopyTree(a.fs, input.Dir, group.Dir); err != nil {
			return err
		}
	}

	return nil
}

// Aggregate plans and applies every group and returns the groups touched. In ModePerBuild only the last build of
// a destination survives, callers publishing each build should use Plan and Apply instead.
func (a *Aggregator) Aggregate(l log.Logger, staged []Staged, destRoot string, mode Mode) ([]Group, error) {
	groups := a.Plan(staged, destRoot, mode)

	for _, group := range groups {
		if err := a.Apply(l, group); err != nil {
			return nil, err
		}
	}

	return groups, nil
}

func less(a, b Staged) bool {
	if a.Job.BuildID != b.Job.BuildID {
		return LessBuild(a.Job.BuildID, b.Job.BuildID)
	}

	if a.Job.Step != b.Job.Step {
		return lessStep(a.Job.Step, b.Job.Step)
	}

	return a.Dir < b.Dir
}

func lessStep(a, b string) bool {
	return LessBuild(strings.TrimPrefix(a, identity.StepPrefix), strings.TrimPrefix(b, identity.StepPrefix))
}

// LessBuild reports whether build id a sorts before b, numerically when both are integers, lexically otherwise.
func LessBuild(a, b string) bool {
	numA, errA := strconv.ParseInt(a, 10, 64)
	numB, errB := strconv.ParseInt(b, 10, 64)

	if errA == nil && errB == nil && numA != numB {
		return numA < numB
	}

	return a < b
}
