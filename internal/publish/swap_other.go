//go:build !linux

package publish

import "github.com/input-output-hk/report-aggregator/internal/vfs"

func exchange(fs vfs.FS, a, b string) error {
	return renameAside(fs, a, b)
}
