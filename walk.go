// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// now is a function point that returns time.Now to the caller.
var now = time.Now

// recordVisitor consumes one decoded record. A returned error ends the walk.
type recordVisitor func(*Record) error

// walk drives the decoder from the first record to the end of the pack and hands
// every record to visit. The context is checked before each record.
func walk(ctx context.Context, pr *Reader, cfg *Config, td *TelemetryData, visit recordVisitor) error {
	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return fail(td, "context error", err)
		}

		// get next record
		rec, err := pr.Next()
		switch {

		// if no more records are found exit loop
		case errors.Is(err, io.EOF):
			return nil

		// decoding errors are fatal, the format offers no way to resynchronize
		case err != nil:
			return fail(td, "cannot decode record", err)
		}

		td.RecordsRead++
		cfg.Logger().Debug("decoded record", "name", rec.Name, "size", rec.Size)
		if err := visit(rec); err != nil {
			return err
		}
	}
}

// session bundles the shared preparation of list and extract operations.
type session struct {
	ctx context.Context
	cfg *Config
	td  *TelemetryData
}

// run opens src, drives visit over all records and submits the telemetry data.
// If the walk succeeds, done is called before the telemetry hook.
func (s *session) run(src io.Reader, inputName string, visit recordVisitor, done func() error) error {
	defer s.cfg.TelemetryHook()(s.ctx, s.td)
	defer captureDuration(s.td, now())

	pr, ler, closeFn, err := openPack(s.ctx, src, inputName, s.cfg, s.td)
	defer captureInputSize(s.td, ler)
	if err != nil {
		return fail(s.td, "cannot open pack", err)
	}
	defer closeFn()

	s.cfg.Logger().Info("start", "operation", s.td.Operation, "compression", s.td.InputCompression)
	if err := walk(s.ctx, pr, s.cfg, s.td, visit); err != nil {
		return err
	}
	if done != nil {
		return done()
	}
	return nil
}

// newSession prepares telemetry for operation.
func newSession(ctx context.Context, cfg *Config, operation string) *session {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &session{ctx: ctx, cfg: cfg, td: &TelemetryData{Operation: operation}}
}

// openFile opens the pack file at path. Failures are reported as [ErrOpen].
func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return f, nil
}

// inputName returns the base name of path that is used to guess the input compression.
func inputName(path string) string {
	return filepath.Base(path)
}

// fail increases the error counter, sets the latest error and returns it.
func fail(td *TelemetryData, msg string, err error) error {
	td.ExtractionErrors++
	td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)
	return td.LastExtractionError
}

// handleError increases the error counter, sets the latest error and
// decides if the operation should continue.
func handleError(c *Config, td *TelemetryData, msg string, err error) error {

	// increase error counter and set error
	err = fail(td, msg, err)

	// do not end on error
	if c.ContinueOnError() {
		c.Logger().Error(msg, "error", err)
		return nil
	}

	// end operation on error
	return err
}

// captureDuration captures the duration of the operation
func captureDuration(td *TelemetryData, start time.Time) {
	stop := now()
	td.Duration = stop.Sub(start)
}

// captureInputSize captures the input size of the operation
func captureInputSize(td *TelemetryData, ler *limitErrorReader) {
	td.InputSize = int64(ler.ReadBytes())
}
