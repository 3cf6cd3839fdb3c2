// Package archive extracts the compressed artifacts produced by CI runs.
package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

const (
	// TarXzExt is the extension of the results archives.
	TarXzExt = ".tar.xz"
	// ZipExt is the extension of the GitHub artifact bundles.
	ZipExt = ".zip"
)

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// MalformedArchiveError is returned when the archive cannot be decompressed.
type MalformedArchiveError struct {
	Path string
	Err  error
}

func (err MalformedArchiveError) Error() string {
	return "malformed archive " + err.Path + ": " + err.Err.Error()
}

func (err MalformedArchiveError) Unwrap() error {
	return err.Err
}

// UnsupportedArchiveError is returned for archives of an unknown format.
type UnsupportedArchiveError struct {
	Path string
}

func (err UnsupportedArchiveError) Error() string {
	return "unsupported archive format: " + err.Path
}

// GetterExtractor extracts archives with the go-getter decompressors, picked by file extension.
type GetterExtractor struct {
	decompressors map[string]getter.Decompressor
	umask         os.FileMode
}

// NewExtractor returns the extractor for tar.xz and zip archives.
func NewExtractor() *GetterExtractor {
	return &GetterExtractor{
		decompressors: map[string]getter.Decompressor{
			TarXzExt: new(getter.TarXzDecompressor),
			ZipExt:   new(getter.ZipDecompressor),
		},
	}
}

// Extract implements Extractor.
func (extractor *GetterExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err)
	}

	decompressor, ok := extractor.decompressorFor(archivePath)
	if !ok {
		return errors.New(UnsupportedArchiveError{Path: archivePath})
	}

	if info, err := os.Stat(archivePath); err != nil {
		return errors.New(err)
	} else if info.IsDir() {
		return errors.Errorf("archive %s is a directory", archivePath)
	}

	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return errors.New(err)
	}

	if err := decompressor.Decompress(destDir, archivePath, true, extractor.umask); err != nil {
		return errors.New(MalformedArchiveError{Path: archivePath, Err: err})
	}

	return nil
}

func (extractor *GetterExtractor) decompressorFor(path string) (getter.Decompressor, bool) {
	name := strings.ToLower(filepath.Base(path))

	for ext, decompressor := range extractor.decompressors {
		if strings.HasSuffix(name, ext) {
			return decompressor, true
		}
	}

	return nil, false
}
