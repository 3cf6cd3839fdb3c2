package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/vfs"
	"github.com/input-output-hk/report-aggregator/test/helpers"
)

func TestReplaceDir(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		existing map[string]string
	}{
		{name: "new destination"},
		{name: "existing destination", existing: map[string]string{"index.html": "old", "data/old.json": "old"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tmpDir := t.TempDir()
			src := filepath.Join(tmpDir, "report")
			dst := filepath.Join(tmpDir, "web", "nightly")

			helpers.WriteFiles(t, src, map[string]string{"index.html": "new", "widgets/summary.json": "{}"})
			require.NoError(t, os.Symlink("index.html", filepath.Join(src, "latest.html")))

			if tc.existing != nil {
				helpers.WriteFiles(t, dst, tc.existing)
			}

			require.NoError(t, ReplaceDir(vfs.NewOSFS(), src, dst))

			assert.Equal(t, map[string]string{"index.html": "new", "widgets/summary.json": "{}"}, helpers.ReadTree(t, dst))

			target, err := os.Readlink(filepath.Join(dst, "latest.html"))
			require.NoError(t, err)
			assert.Equal(t, "index.html", target)

			// no temporary directory is left next to the destination
			entries, err := os.ReadDir(filepath.Dir(dst))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "nightly", entries[0].Name())

			// the source is kept
			assert.FileExists(t, filepath.Join(src, "index.html"))
		})
	}
}

func TestRenameAside(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a")
	b := filepath.Join(tmpDir, "b")

	helpers.WriteFiles(t, a, map[string]string{"file": "a"})
	helpers.WriteFiles(t, b, map[string]string{"file": "b"})

	require.NoError(t, renameAside(vfs.NewOSFS(), a, b))

	assert.Equal(t, map[string]string{"file": "b"}, helpers.ReadTree(t, a))
	assert.Equal(t, map[string]string{"file": "a"}, helpers.ReadTree(t, b))
	assert.NoDirExists(t, a+"-old")
}
