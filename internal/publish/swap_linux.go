//go:build linux

package publish

import (
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

// exchange atomically swaps the paths a and b with renameat2(RENAME_EXCHANGE), falling back to renameAside
// on filesystems not supporting it.
func exchange(fs vfs.FS, a, b string) error {
	if _, ok := fs.(*afero.OsFs); !ok {
		return renameAside(fs, a, b)
	}

	err := unix.Renameat2(unix.AT_FDCWD, a, unix.AT_FDCWD, b, unix.RENAME_EXCHANGE)
	if err == nil {
		return nil
	}

	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EOPNOTSUPP) {
		return renameAside(fs, a, b)
	}

	return errors.New(err)
}
