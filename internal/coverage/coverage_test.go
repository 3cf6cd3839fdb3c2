package coverage_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/coverage"
	"github.com/input-output-hk/report-aggregator/internal/errors"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		a        string
		b        string
		expected string
	}{
		{
			name:     "numbers are added",
			a:        `{"_count_query":2,"tip":1}`,
			b:        `{"tip":3,"_count_query":1}`,
			expected: `{"_count_query":3,"tip":4}`,
		},
		{
			name:     "lists are joined into a sorted set",
			a:        `{"args":["--b","--a"]}`,
			b:        `{"args":["--c","--a"]}`,
			expected: `{"args":["--a","--b","--c"]}`,
		},
		{
			name:     "objects are merged recursively",
			a:        `{"query":{"tip":1,"utxo":0}}`,
			b:        `{"query":{"utxo":2,"protocol-parameters":1}}`,
			expected: `{"query":{"tip":1,"utxo":2,"protocol-parameters":1}}`,
		},
		{
			name:     "new keys are appended",
			a:        `{"query":1}`,
			b:        `{"transaction":{"build":1}}`,
			expected: `{"query":1,"transaction":{"build":1}}`,
		},
		{
			name:     "mismatched types are overwritten",
			a:        `{"query":[1],"tip":"x"}`,
			b:        `{"query":2,"tip":3}`,
			expected: `{"query":2,"tip":3}`,
		},
		{
			name:     "non-object values are kept over objects",
			a:        `{"query":5}`,
			b:        `{"query":{"tip":1}}`,
			expected: `{"query":5}`,
		},
		{
			name:     "empty base",
			a:        `{}`,
			b:        `{"cardano-cli":{"latest":{}}}`,
			expected: `{"cardano-cli":{"latest":{}}}`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			merged, err := coverage.Merge(tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, merged)
		})
	}
}

func TestMergeInvalid(t *testing.T) {
	t.Parallel()

	_, err := coverage.Merge(`{}`, `[1, 2]`)
	require.Error(t, err)

	_, err = coverage.Merge(`{`, `{}`)
	require.Error(t, err)
}

func TestNewReport(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		command   string
		coverage  string
		expected  string
		covered   int
		uncovered int
	}{
		{
			name:      "counts and percentages",
			command:   "utxo",
			coverage:  `{"_count_utxo":1,"--address":3,"--whole-utxo":0,"_coverage_utxo":12}`,
			expected:  `{"_count_utxo":1,"--address":3,"--whole-utxo":0,"_coverage_utxo":50.0}`,
			covered:   1,
			uncovered: 1,
		},
		{
			name:      "skipped arguments",
			command:   "tip",
			coverage:  `{"_count_tip":2,"--testnet-magic":2,"--mainnet":0,"--out-file":1,"help":0}`,
			expected:  `{"_count_tip":2,"_coverage_tip":100.0}`,
			covered:   1,
			uncovered: 0,
		},
		{
			name:      "command never executed",
			command:   "tip",
			coverage:  `{"_count_tip":0,"--testnet-magic":0}`,
			expected:  `{"_count_tip":0,"_coverage_tip":0}`,
			covered:   0,
			uncovered: 0,
		},
		{
			name:      "legacy options of the MIR certificate command",
			command:   "create-mir-certificate",
			coverage:  `{"_count_create-mir-certificate":1,"--reserves":0,"stake-addresses":2}`,
			expected:  `{"_count_create-mir-certificate":1,"stake-addresses":2,"_coverage_create-mir-certificate":100.0}`,
			covered:   1,
			uncovered: 0,
		},
		{
			name:      "nested commands",
			command:   "query",
			coverage:  `{"_count_query":3,"tip":{"_count_tip":2},"utxo":{"_count_utxo":1,"--address":1,"--whole-utxo":0}}`,
			expected:  `{"_count_query":3,"tip":{"_count_tip":2,"_coverage_tip":100.0},"utxo":{"_count_utxo":1,"--address":1,"--whole-utxo":0,"_coverage_utxo":50.0},"_coverage_query":66.66666666666667}`,
			covered:   2,
			uncovered: 1,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			report, err := coverage.NewReport(tc.command, tc.coverage)
			require.NoError(t, err)

			assert.Equal(t, tc.expected, report.JSON)
			assert.Equal(t, tc.covered, report.Covered)
			assert.Equal(t, tc.uncovered, report.Uncovered)
		})
	}
}

func TestReportTotal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		json     string
		expected int
	}{
		{json: `{"_coverage_cardano-cli":66.66666666666667}`, expected: 67},
		{json: `{"_coverage_cardano-cli":62.5}`, expected: 62},
		{json: `{"_coverage_cardano-cli":63.5}`, expected: 64},
		{json: `{"_coverage_cardano-cli":0}`, expected: 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.json, func(t *testing.T) {
			t.Parallel()

			report := &coverage.Report{JSON: tc.json}

			total, content := report.Total(coverage.RootCommand)
			assert.Equal(t, tc.expected, total)
			assert.JSONEq(t, `{"_coverage_cardano-cli":`+strconv.Itoa(tc.expected)+`}`, content)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, coverage.Validate("ok.json", []byte(`{"cardano-cli":{"latest":{}}}`)))

	for _, data := range []string{`{"cardano-cli":{}}`, `{"latest":{}}`, `not json`} {
		err := coverage.Validate("bad.json", []byte(data))

		var formatErr coverage.FormatError
		require.True(t, errors.As(err, &formatErr), data)
		assert.Equal(t, "bad.json", formatErr.Path)
	}
}
