// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

// TargetDisk stores extracted records as regular files on the local filesystem.
// It takes paths as they are, record names are joined to the destination before.
type TargetDisk struct{}

// NewTargetDisk returns a [Target] that writes to the local filesystem.
func NewTargetDisk() *TargetDisk {
	return &TargetDisk{}
}

// CreateDir creates the destination directory path and its missing parents.
func (*TargetDisk) CreateDir(path string, mode fs.FileMode) error {
	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", path, err)
	}
	return nil
}

// CreateFile stores the payload of one record at path. Without overwrite an
// existing file is left alone and fs.ErrExist is returned. A negative maxSize
// writes the whole payload, otherwise writing stops with io.ErrShortWrite after
// maxSize bytes. The written byte count is returned in both cases.
func (*TargetDisk) CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("cannot open output file: %w", err)
	}

	n, err := io.Copy(limitWriter(f, maxSize), src)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("cannot write payload: %w", err)
	}

	// each record gets its own descriptor, release it before the next one
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("cannot close output file: %w", err)
	}
	return n, nil
}

// Lstat describes path without following a final symlink.
func (*TargetDisk) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}
