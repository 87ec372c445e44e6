// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
)

// ExtractAll decodes all records of the pack in src and writes each one to
// dst/<name> on t. The destination is expected to exist unless
// [WithCreateDestination] is set. Files written for earlier records are kept if a
// later record fails.
func ExtractAll(ctx context.Context, t Target, src io.Reader, dst string, cfg *Config) error {
	return extractAll(ctx, t, src, "", dst, cfg)
}

// ExtractAllFile opens the pack file at packPath and extracts all records to the
// directory dst on disk, see [ExtractAll].
func ExtractAllFile(ctx context.Context, packPath string, dst string, cfg *Config) error {
	f, err := openFile(packPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return extractAll(ctx, NewTargetDisk(), f, inputName(packPath), dst, cfg)
}

// ExtractOne decodes all records of the pack in src and writes those whose name
// equals name byte for byte to dst/<name> on t. The whole pack is always read, so
// a later record with the same name replaces an earlier one. If no record matched,
// an error wrapping [ErrNotFound] is returned; nothing was written in that case.
func ExtractOne(ctx context.Context, t Target, src io.Reader, name string, dst string, cfg *Config) error {
	return extractOne(ctx, t, src, "", name, dst, cfg)
}

// ExtractFile opens the pack file at packPath and extracts the record called name to
// the directory dst on disk, see [ExtractOne].
func ExtractFile(ctx context.Context, packPath string, name string, dst string, cfg *Config) error {
	f, err := openFile(packPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return extractOne(ctx, NewTargetDisk(), f, inputName(packPath), name, dst, cfg)
}

func extractAll(ctx context.Context, t Target, src io.Reader, input string, dst string, cfg *Config) error {
	s := newSession(ctx, cfg, OperationExtract)
	e := &extraction{t: t, dst: dst, cfg: s.cfg, td: s.td}
	return s.run(src, input, func(rec *Record) error {

		// check if record needs to match patterns
		match, err := checkPatterns(s.cfg.Patterns(), rec.Name)
		if err != nil {
			return fail(s.td, "cannot check pattern", err)
		}
		if !match {
			s.cfg.Logger().Info("skipping file (pattern mismatch)", "name", rec.Name)
			s.td.PatternMismatches++
			return nil
		}

		return e.write(rec)
	}, nil)
}

func extractOne(ctx context.Context, t Target, src io.Reader, input string, name string, dst string, cfg *Config) error {
	s := newSession(ctx, cfg, OperationExtractOne)
	e := &extraction{t: t, dst: dst, cfg: s.cfg, td: s.td}
	var found bool

	// the pack is scanned to the end, even after a match
	return s.run(src, input, func(rec *Record) error {
		if rec.Name != name {
			return nil
		}
		found = true
		return e.write(rec)
	}, func() error {
		if found {
			return nil
		}
		s.td.NotFound = true
		s.cfg.Logger().Info("file not found", "name", name)
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	})
}

// extraction writes records to a target and tracks the limits.
type extraction struct {
	t        Target
	dst      string
	cfg      *Config
	td       *TelemetryData
	prepared bool
	files    int64
	size     int64
}

// write creates the output file for rec. Limit violations are fatal, a failure to
// write the file is passed to handleError.
func (e *extraction) write(rec *Record) error {

	// the destination is checked once the first file is due
	if !e.prepared {
		if err := prepareDestination(e.t, e.dst, e.cfg); err != nil {
			return fail(e.td, "cannot prepare destination", err)
		}
		e.prepared = true
	}

	// check if maximum of files is exceeded
	e.files++
	if err := e.cfg.CheckMaxFiles(e.files); err != nil {
		return fail(e.td, "max files check failed", err)
	}

	// check extraction size
	if err := e.cfg.CheckExtractionSize(e.size + rec.Len()); err != nil {
		return fail(e.td, "max extraction size exceeded", err)
	}

	e.cfg.Logger().Debug("extract", "name", rec.Name, "size", rec.Size)
	n, err := createFile(e.t, e.dst, rec.Name, rec.Open(), e.cfg.CustomFileMode(), e.remaining(), e.cfg)
	e.size += n
	e.td.ExtractionSize = e.size
	if err != nil {
		return handleError(e.cfg, e.td, "failed to create file", err)
	}

	e.td.ExtractedFiles++
	return nil
}

// remaining returns how many bytes may still be written, or -1 without limit.
func (e *extraction) remaining() int64 {
	if e.cfg.MaxExtractionSize() == -1 {
		return -1
	}
	return e.cfg.MaxExtractionSize() - e.size
}

// checkPatterns checks if the given path matches any of the given patterns.
// If no patterns are given, the function returns true.
func checkPatterns(patterns []string, path string) (bool, error) {

	// no patterns given
	if len(patterns) == 0 {
		return true, nil
	}

	// check if path matches any pattern
	for _, pattern := range patterns {
		if match, err := filepath.Match(pattern, path); err != nil {
			return false, fmt.Errorf("failed to match pattern: %w", err)
		} else if match {
			return true, nil
		}
	}
	return false, nil
}
