// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PackDir writes a pack containing every regular file directly inside dir to w.
// Files are added in lexical order under their base name. Subdirectories, symlinks
// and other special files are skipped.
func PackDir(ctx context.Context, dir string, w io.Writer, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	// prepare telemetry capturing
	td := &TelemetryData{Operation: OperationPack}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureDuration(td, now())

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fail(td, "cannot read directory", fmt.Errorf("%w: %w", ErrOpen, err))
	}

	pw, err := NewWriter(w)
	if err != nil {
		return fail(td, "cannot start pack", err)
	}

	cfg.Logger().Info("start", "operation", td.Operation, "dir", dir)
	for _, entry := range entries {

		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return fail(td, "context error", err)
		}

		if !entry.Type().IsRegular() {
			cfg.Logger().Info("skipping unsupported file", "name", entry.Name(), "type", entry.Type().String())
			td.UnsupportedFiles++
			continue
		}

		// check if maximum of files is exceeded
		if err := cfg.CheckMaxFiles(td.PackedFiles + 1); err != nil {
			return fail(td, "max files check failed", err)
		}

		n, err := packFile(pw, filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			return fail(td, "cannot pack file", err)
		}
		td.PackedFiles++
		td.InputSize += n
		cfg.Logger().Debug("packed", "name", entry.Name(), "size", n)
	}

	return nil
}

// PackDirFile creates or truncates the pack file at packPath and writes dir into it,
// see [PackDir].
func PackDirFile(ctx context.Context, dir string, packPath string, cfg *Config) error {
	f, err := os.OpenFile(packPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := PackDir(ctx, dir, bw, cfg); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cannot write pack file: %w", err)
	}
	return f.Close()
}

// packFile adds the file at path as record name and returns the payload length.
func packFile(pw *Writer, path string, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("cannot stat %s: %w", name, err)
	}
	if err := pw.WriteFrom(name, stat.Size(), f); err != nil {
		return 0, err
	}
	return stat.Size(), nil
}
