// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

//go:generate mockgen -source=target.go -destination=mock_target_test.go -package=spack_test

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Target specifies all function that are needed to be implemented to extract records from a pack
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned. If the
	// file exists and overwrite is true, it is truncated. The size of the file should not exceed maxSize. The number of
	// bytes written should be returned, also along with an error. If maxSize < 0, the file size is not limited.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error)

	// CreateDir creates at the specified path with the specified mode. If the directory already exists, nothing is done.
	// The function returns an error if there's a problem creating the directory. If the function completes successfully,
	// it returns nil.
	CreateDir(path string, mode fs.FileMode) error

	// Lstat see docs for os.Lstat. Main purpose is to check the destination and for symlinks in the
	// extraction path.
	Lstat(path string) (fs.FileInfo, error)
}

// outputPath joins the destination directory and a record name with a single
// separator. The name is not cleaned, so separators and dot segments inside the
// name are kept as stored.
func outputPath(dst string, name string) string {
	if len(dst) == 0 {
		return name
	}
	return strings.TrimSuffix(dst, "/") + "/" + name
}

// prepareDestination ensures that dst exists. If it does not exist and
// config.CreateDestination() returns true, it is created.
func prepareDestination(t Target, dst string, cfg *Config) error {
	if len(dst) == 0 {
		return nil
	}
	if d := strings.TrimSuffix(dst, "/"); len(d) > 0 {
		dst = d
	}
	if _, err := t.Lstat(dst); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("invalid destination: %w", err)
		}
		if !cfg.CreateDestination() {
			return fmt.Errorf("destination does not exist: %w", err)
		}
		if err := t.CreateDir(dst, cfg.CustomCreateDirMode()); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
		cfg.Logger().Info("created destination directory", "path", dst)
	}
	return nil
}

// createFile is a wrapper around the CreateFile function
//
// If config.DenyPathTraversal() returns true, names that leave dst or pass through a
// symlink are rejected with ErrPathTraversal before anything is written.
//
// If the file is created successfully, the function returns the number of bytes written and nil.
func createFile(t Target, dst string, name string, src io.Reader, mode fs.FileMode, maxSize int64, cfg *Config) (int64, error) {
	if cfg.DenyPathTraversal() {
		if err := securityCheck(t, dst, name, cfg); err != nil {
			return 0, fmt.Errorf("security check path failed: %w", err)
		}
	}
	n, err := t.CreateFile(outputPath(dst, name), src, mode, cfg.Overwrite(), maxSize)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return n, nil
}

// securityCheck checks if name contains path traversal relative to dst
// and if the path passes through a symlink.
func securityCheck(t Target, dst string, name string, config *Config) error {
	// a record needs a name to become a file
	if len(name) == 0 {
		return fmt.Errorf("%w: empty name", ErrPathTraversal)
	}

	// an absolute name is never local
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: absolute name %s", ErrPathTraversal, name)
	}

	// clean the name
	parts := strings.Split(name, "/")
	path := filepath.Join(parts...)

	// check if the relative path is local
	if !filepath.IsLocal(path) {
		return fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}

	// check each dir in path
	elements := strings.Split(path, string(os.PathSeparator))
	for i := 0; i < len(elements); i++ {

		// assemble path
		subDirs := filepath.Join(elements[0 : i+1]...)
		checkDir := outputPath(dst, filepath.ToSlash(subDirs))

		// check for symlink
		isSymlink, err := isSymlink(t, checkDir)
		if err != nil {
			return fmt.Errorf("failed to check symlink: %w", err)
		}
		if isSymlink {
			config.Logger().Warn("symlink in path", "sub-dir", subDirs)
			return fmt.Errorf("%w: symlink in path %s", ErrPathTraversal, subDirs)
		}
	}

	return nil
}

// isSymlink checks if path is a symlink
//
// The function returns true if the path is a symlink, otherwise false.
func isSymlink(t Target, path string) (bool, error) {
	// perform check
	if stat, err := t.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		// check if error occurred --> not a symlink
		if err != nil {
			return false, fmt.Errorf("failed to check path: %w", err)
		}

		// check if we got stats
		if stat == nil {
			return false, fmt.Errorf("failed to get stats")
		}

		// check if symlink
		if stat.Mode()&os.ModeSymlink == os.ModeSymlink {
			return true, nil
		}
	}

	// no symlink found within path
	return false, nil
}
