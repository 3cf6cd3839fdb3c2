// Package coverage merges the CLI coverage collected by the nightly runs and publishes a report of it.
//
// Coverage files are JSON objects keyed by command, sub-command and option names. Leaf values count the
// invocations, `_count_<command>` keys count the invocations of a command itself.
package coverage

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

const (
	// FileName is the name of a downloaded coverage file.
	FileName = "cli_coverage.json"
	// RootCommand is the top level command of the coverage data.
	RootCommand = "cardano-cli"

	coveragePrefix = "_coverage"
	countPrefix    = "_count"

	// legacyMIRCommand had its options superseded by the stake-addresses command.
	legacyMIRCommand = "create-mir-certificate"
)

var skippedArgs = map[string]bool{
	"--out-file":      true,
	"--testnet-magic": true,
	"--mainnet":       true,
	"--cardano-mode":  true,
	"create-cardano":  true,
	"help":            true,
}

// FormatError is returned for coverage files that do not hold coverage of the root command.
type FormatError struct {
	Path string
}

func (err FormatError) Error() string {
	return "data in " + err.Path + " does not seem to be in proper coverage format"
}

// Validate checks that the coverage holds data of the latest root command.
func Validate(path string, data []byte) error {
	if !gjson.ValidBytes(data) || !gjson.GetBytes(data, RootCommand+".latest").Exists() {
		return errors.New(FormatError{Path: path})
	}

	return nil
}

// Merge merges the coverage b into a and returns the result. Numbers are added, arrays are joined into a sorted
// set, objects are merged recursively and anything else present in b overwrites a. A non-object value in a
// is kept when b holds an object under the same key.
func Merge(a, b string) (string, error) {
	objA, err := parseObject(a)
	if err != nil {
		return "", err
	}

	objB, err := parseObject(b)
	if err != nil {
		return "", err
	}

	merge(objA, objB)

	return objA.String(), nil
}

func merge(a, b *object) {
	for _, f := range b.fields {
		value := gjson.Parse(f.raw)
		current, exists := a.get(f.key)

		switch {
		case exists && value.IsArray() && current.IsArray():
			a.set(f.key, union(current, value))
		case exists && value.Type == gjson.Number && current.Type == gjson.Number:
			a.set(f.key, formatNumber(current.Num+value.Num))
		case !exists || !value.IsObject():
			a.set(f.key, f.raw)
		case current.IsObject():
			objA, _ := parseObject(current.Raw)
			objB, _ := parseObject(value.Raw)

			merge(objA, objB)
			a.set(f.key, objA.String())
		}
	}
}

// Report is the coverage report of a command.
type Report struct {
	// JSON is the report: the counts of the covered arguments, zero for the uncovered ones, and the
	// `_coverage_<command>` percentage of every command.
	JSON      string
	Covered   int
	Uncovered int
}

// NewReport builds the coverage report of the command whose coverage is given.
func NewReport(command, coverage string) (*Report, error) {
	obj, err := parseObject(coverage)
	if err != nil {
		return nil, err
	}

	out, covered, uncovered := report(command, obj)

	return &Report{JSON: out.String(), Covered: covered, Uncovered: uncovered}, nil
}

func report(command string, coverage *object) (*object, int, int) {
	var (
		out                = newObject()
		covered, uncovered int
	)

	for _, f := range coverage.fields {
		if strings.HasPrefix(f.key, coveragePrefix) || skippedArgs[f.key] {
			continue
		}

		if command == legacyMIRCommand && strings.HasPrefix(f.key, "--") {
			continue
		}

		if strings.HasPrefix(f.key, countPrefix) {
			out.set(f.key, f.raw)
			continue
		}

		value := gjson.Parse(f.raw)

		if value.IsObject() {
			sub, _ := parseObject(f.raw)
			subReport, subCovered, subUncovered := report(f.key, sub)

			covered += subCovered
			uncovered += subUncovered

			out.set(f.key, subReport.String())

			continue
		}

		if value.Type == gjson.Number && value.Num == 0 {
			out.set(f.key, "0")
			uncovered++

			continue
		}

		out.set(f.key, f.raw)
		covered++
	}

	// a command whose options were all skipped is covered when it ran at least once
	if count, ok := coverage.get(countPrefix + "_" + command); covered == 0 && ok && count.Num > 0 {
		covered = 1
	}

	out.set(coveragePrefix+"_"+command, formatPercentage(covered, uncovered))

	return out, covered, uncovered
}

// formatPercentage renders the share of covered arguments, always as a float unless nothing is covered.
func formatPercentage(covered, uncovered int) string {
	if covered == 0 {
		return "0"
	}

	pct := formatNumber(100 / (float64(covered+uncovered) / float64(covered)))
	if !strings.ContainsAny(pct, ".e") {
		pct += ".0"
	}

	return pct
}

// Total returns the top level coverage percentage of the report rounded half to even, and the report with the
// percentage replaced by its rounded value.
func (r *Report) Total(command string) (int, string) {
	obj, err := parseObject(r.JSON)
	if err != nil {
		return 0, r.JSON
	}

	key := coveragePrefix + "_" + command

	value, ok := obj.get(key)
	if !ok {
		return 0, r.JSON
	}

	rounded := int(math.RoundToEven(value.Num))
	obj.set(key, formatNumber(float64(rounded)))

	return rounded, obj.String()
}
