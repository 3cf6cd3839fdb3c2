package publish

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

// ReplaceDir replaces the directory dst with a copy of src. The copy is prepared in a hidden sibling of dst and
// then exchanged with it, so readers of dst see either the old or the new content.
func ReplaceDir(fs vfs.FS, src, dst string) error {
	parent := filepath.Dir(dst)

	if err := fs.MkdirAll(parent, vfs.DefaultDirPerm); err != nil {
		return errors.New(err)
	}

	tmp := filepath.Join(parent, "."+filepath.Base(dst)+"-"+uuid.NewString())

	if err := vfs.CopyTree(fs, src, tmp); err != nil {
		fs.RemoveAll(tmp) //nolint:errcheck
		return err
	}

	exists, err := vfs.FileExists(fs, dst)
	if err != nil {
		fs.RemoveAll(tmp) //nolint:errcheck
		return errors.New(err)
	}

	if !exists {
		return errors.New(fs.Rename(tmp, dst))
	}

	if err := exchange(fs, tmp, dst); err != nil {
		fs.RemoveAll(tmp) //nolint:errcheck
		return err
	}

	// tmp holds the previous content now
	return errors.New(fs.RemoveAll(tmp))
}

// renameAside swaps a and b with three renames, b is briefly missing in between.
func renameAside(fs vfs.FS, a, b string) error {
	aside := a + "-old"

	if err := fs.Rename(b, aside); err != nil {
		return errors.New(err)
	}

	if err := fs.Rename(a, b); err != nil {
		fs.Rename(aside, b) //nolint:errcheck
		return errors.New(err)
	}

	return errors.New(fs.Rename(aside, a))
}
