package publish

import (
	"path/filepath"

	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

// HistoryDirName is the directory in which Allure keeps the data of its trend graphs.
const HistoryDirName = "history"

// CopyHistory replaces the history of the results in resultsDir with the one of the report published in webDir,
// so that trends carry on across runs. It reports whether a history was found.
func CopyHistory(fs vfs.FS, webDir, resultsDir string) (bool, error) {
	src := filepath.Join(webDir, HistoryDirName)
	if !vfs.IsDir(fs, src) {
		return false, nil
	}

	dst := filepath.Join(resultsDir, HistoryDirName)

	if err := vfs.RecreateDir(fs, dst); err != nil {
		return false, err
	}

	if err := vfs.CopyTree(fs, src, dst); err != nil {
		return false, err
	}

	return true, nil
}
