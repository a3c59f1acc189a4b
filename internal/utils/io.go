// Package utils provides internal file helpers used by the netlog writer.
//
// This package contains path validation for the final log location, the
// append-then-delete primitive used while stitching staged files, and gzip
// compression of a finished artifact. These utilities are for internal use
// and are not part of the public API.
package utils

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
)

// ValidateLogPath cleans the given path and rejects values that cannot name a
// log file: empty paths, traversal sequences and existing directories.
func ValidateLogPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ewrap.New("log path cannot be empty")
	}

	if strings.Contains(filepath.ToSlash(path), "../") {
		return "", ewrap.New("invalid path contains directory traversal sequence").
			WithMetadata("path", path)
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err == nil && info.IsDir() {
		return "", ewrap.New("log path is a directory").
			WithMetadata("path", cleanPath)
	}

	return cleanPath, nil
}

// AppendFileThenDelete copies the content of src to dst using buf, then removes src.
// A missing source is not an error: it means the file was never written. dst may be
// nil, in which case the content is discarded. The number of bytes written to dst is
// returned.
func AppendFileThenDelete(src string, dst io.Writer, buf []byte) (int64, error) {
	//nolint:gosec // G304: src is always a path built inside the staging directory.
	source, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, ewrap.Wrap(err, "opening staged file").
			WithMetadata("path", src)
	}

	var written int64

	if dst != nil {
		written, err = io.CopyBuffer(onlyWriter{dst}, source, buf)
	}

	closeErr := source.Close()

	removeErr := os.Remove(src)
	if removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = removeErr
	}

	if err != nil {
		return written, ewrap.Wrap(err, "appending staged file").
			WithMetadata("path", src)
	}

	if closeErr != nil {
		return written, ewrap.Wrap(closeErr, "closing staged file").
			WithMetadata("path", src)
	}

	return written, nil
}

// CompressFile gzips src into dst at the given level and removes src when done.
// On failure the partial dst is removed and src is left untouched.
func CompressFile(src, dst string, level int, mode os.FileMode) error {
	//nolint:gosec // G304: src is the writer's own final log path.
	source, err := os.Open(src)
	if err != nil {
		return ewrap.Wrap(err, "opening source file").
			WithMetadata("path", src)
	}

	defer source.Close()

	//nolint:gosec // G304: dst is derived from the writer's own final log path.
	target, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return ewrap.Wrap(err, "creating compressed file").
			WithMetadata("path", dst)
	}

	gzipWriter, err := gzip.NewWriterLevel(target, level)
	if err != nil {
		_ = target.Close()
		_ = os.Remove(dst)

		return ewrap.Wrap(err, "creating gzip writer").
			WithMetadata("level", level)
	}

	_, err = io.Copy(gzipWriter, source)
	if err == nil {
		err = gzipWriter.Close()
	}

	if err == nil {
		err = target.Sync()
	}

	closeErr := target.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(dst)

		return ewrap.Wrap(err, "compressing file").
			WithMetadata("source", src).
			WithMetadata("target", dst)
	}

	err = os.Remove(src)
	if err != nil {
		return ewrap.Wrap(err, "removing original after compression").
			WithMetadata("path", src)
	}

	return nil
}

// onlyWriter hides any ReaderFrom implementation of the wrapped writer so that
// io.CopyBuffer honours the caller's buffer.
type onlyWriter struct {
	io.Writer
}
