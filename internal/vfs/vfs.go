// Package vfs provides a virtual filesystem abstraction for testing and production use.
// It wraps afero to provide a consistent interface for filesystem operations.
package vfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

const (
	DefaultDirPerm  os.FileMode = 0o755
	DefaultFilePerm os.FileMode = 0o644
)

// FS is the filesystem interface used throughout the codebase.
// It provides an abstraction over real and in-memory filesystems.
type FS = afero.Fs

// NewOSFS returns a filesystem backed by the real operating system filesystem.
func NewOSFS() FS {
	return afero.NewOsFs()
}

// NewMemMapFS returns an in-memory filesystem for testing purposes.
func NewMemMapFS() FS {
	return afero.NewMemMapFs()
}

// FileExists checks if a path exists using the given filesystem.
// Returns (true, nil) if the file exists, (false, nil) if it does not exist,
// and (false, error) for other errors (e.g., permission denied).
func FileExists(fs FS, path string) (bool, error) {
	_, err := lstat(fs, path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// IsDir returns true if the path exists and is a directory.
func IsDir(fs FS, path string) bool {
	ok, err := afero.IsDir(fs, path)

	return err == nil && ok
}

// IsFile returns true if the path exists and is a regular file.
func IsFile(fs FS, path string) bool {
	info, err := fs.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

// WriteFile writes data to a file on the given filesystem.
func WriteFile(fs FS, filename string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(fs, filename, data, perm)
}

// ReadFile reads the contents of a file from the given filesystem.
func ReadFile(fs FS, filename string) ([]byte, error) {
	return afero.ReadFile(fs, filename)
}

// Symlink creates a symbolic link. Only filesystems implementing afero.Linker support it.
func Symlink(fs FS, oldname, newname string) error {
	linker, ok := fs.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: afero.ErrNoSymlink}
	}

	return linker.SymlinkIfPossible(oldname, newname)
}

// Readlink returns the destination of the named symbolic link.
func Readlink(fs FS, name string) (string, error) {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
	}

	return reader.ReadlinkIfPossible(name)
}

// RecreateDir removes the directory with all its content and creates it again, empty.
func RecreateDir(fs FS, path string) error {
	if err := fs.RemoveAll(path); err != nil {
		return errors.New(err)
	}

	return errors.New(fs.MkdirAll(path, DefaultDirPerm))
}

// CopyTree copies the content of src into dst. Files already present in dst and not present in src are kept,
// files present in both are overwritten. Symbolic links are copied as links, their targets are never resolved.
func CopyTree(fs FS, src, dst string) error {
	if !IsDir(fs, src) {
		return errors.Errorf("source %q is not a directory", src)
	}

	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.New(err)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.New(err)
		}

		target := filepath.Join(dst, rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			return copySymlink(fs, path, target)
		case info.IsDir():
			if existing, err := lstat(fs, target); err == nil && !existing.IsDir() {
				if err := fs.Remove(target); err != nil {
					return errors.New(err)
				}
			}

			return errors.New(fs.MkdirAll(target, info.Mode().Perm()|0o700))
		default:
			return copyFile(fs, path, target, info.Mode().Perm())
		}
	})
}

func copySymlink(fs FS, src, dst string) error {
	linkTarget, err := Readlink(fs, src)
	if err != nil {
		return errors.New(err)
	}

	if exists, err := FileExists(fs, dst); err != nil {
		return errors.New(err)
	} else if exists {
		if err := fs.RemoveAll(dst); err != nil {
			return errors.New(err)
		}
	}

	return errors.New(Symlink(fs, linkTarget, dst))
}

func copyFile(fs FS, src, dst string, perm os.FileMode) error {
	if err := removeExisting(fs, dst); err != nil {
		return err
	}

	in, err := fs.Open(src)
	if err != nil {
		return errors.New(err)
	}
	defer in.Close() //nolint:errcheck

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.New(err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return errors.New(err)
	}

	return errors.New(out.Close())
}

// removeExisting drops whatever is at path unless it is a regular file, which is simply truncated on write.
func removeExisting(fs FS, path string) error {
	info, err := lstat(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.New(err)
	}

	if info.Mode().IsRegular() {
		return nil
	}

	return errors.New(fs.RemoveAll(path))
}

func lstat(fs FS, path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		return info, err
	}

	return fs.Stat(path)
}
