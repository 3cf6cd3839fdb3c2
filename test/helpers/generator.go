package helpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// FakeGenerator stands in for the Allure command line. It renders a summary counting the statuses of the
// result files in the input directory, and an index listing them.
type FakeGenerator struct {
	// Err is returned by every call when set.
	Err error
	// FailOn fails the calls whose input directory holds a file of this name.
	FailOn string
	// Summary replaces the generated summary when set.
	Summary *string

	mu     sync.Mutex
	inputs []string
}

// Generate implements allure.Generator.
func (gen *FakeGenerator) Generate(_ context.Context, _ log.Logger, inputDir, outputDir string) error {
	gen.mu.Lock()
	gen.inputs = append(gen.inputs, inputDir)
	gen.mu.Unlock()

	if gen.Err != nil {
		return gen.Err
	}

	if gen.FailOn != "" {
		if _, err := os.Stat(filepath.Join(inputDir, gen.FailOn)); err == nil {
			return fmt.Errorf("generation failed on %s", gen.FailOn)
		}
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return err
	}

	counts := map[string]int{}

	var names []string

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), "-result.json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(inputDir, entry.Name()))
		if err != nil {
			return err
		}

		counts[gjson.GetBytes(data, "status").String()]++
		names = append(names, entry.Name())
	}

	summary := fmt.Sprintf(`{"statistic":{"passed":%d,"failed":%d,"broken":%d,"skipped":%d}}`,
		counts["passed"], counts["failed"], counts["broken"], counts["skipped"])
	if gen.Summary != nil {
		summary = *gen.Summary
	}

	if err := os.RemoveAll(outputDir); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(outputDir, "widgets"), 0o755); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(outputDir, "history"), 0o755); err != nil {
		return err
	}

	files := map[string]string{
		"index.html":           strings.Join(names, "\n"),
		"widgets/summary.json": summary,
		"history/history.json": fmt.Sprintf(`{"runs":%d}`, len(names)),
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(outputDir, filepath.FromSlash(name)), []byte(content), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Inputs returns the input directories of all calls, in order.
func (gen *FakeGenerator) Inputs() []string {
	gen.mu.Lock()
	defer gen.mu.Unlock()

	return append([]string(nil), gen.inputs...)
}
