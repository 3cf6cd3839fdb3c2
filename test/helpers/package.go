// Package helpers contains fixtures shared by the tests of the report aggregator packages.
package helpers

import (
	"archive/tar"
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/input-output-hk/report-aggregator/pkg/log"
)

// CreateLogger returns a logger writing to the test output, so that logs only show up for failed tests.
func CreateLogger(t *testing.T) log.Logger {
	t.Helper()

	return log.New(log.WithOutput(testWriter{t: t}), log.WithLevel(log.DebugLevel))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// WriteTarXz creates a tar.xz archive at path holding the given files, keyed by their slash separated path.
func WriteTarXz(t *testing.T, path string, files map[string]string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	out, err := os.Create(path)
	require.NoError(t, err)

	xzWriter, err := xz.NewWriter(out)
	require.NoError(t, err)

	tarWriter := tar.NewWriter(xzWriter)

	for _, name := range sortedKeys(files) {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(files[name])),
			Typeflag: tar.TypeReg,
		}))

		_, err := tarWriter.Write([]byte(files[name]))
		require.NoError(t, err)
	}

	require.NoError(t, tarWriter.Close())
	require.NoError(t, xzWriter.Close())
	require.NoError(t, out.Close())
}

// WriteZip creates a zip archive at path holding the given files.
func WriteZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	out, err := os.Create(path)
	require.NoError(t, err)

	zipWriter := zip.NewWriter(out)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		w, err := zipWriter.Create(name)
		require.NoError(t, err)

		_, err = w.Write(files[name])
		require.NoError(t, err)
	}

	require.NoError(t, zipWriter.Close())
	require.NoError(t, out.Close())
}

// WriteFiles writes the given files below dir.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// ReadTree returns every regular file below dir keyed by its slash separated relative path.
func ReadTree(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := map[string]string{}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}

// ResultJSON renders a minimal Allure result record.
func ResultJSON(t *testing.T, name, status, message string) string {
	t.Helper()

	data, err := json.Marshal(map[string]any{
		"uuid":          name,
		"name":          name,
		"status":        status,
		"statusDetails": map[string]any{"message": message},
	})
	require.NoError(t, err)

	return string(data)
}

func sortedKeys(files map[string]string) []string {
	keys := make([]string, 0, len(files))
	for key := range files {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
