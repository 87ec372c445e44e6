// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import "io"

// limitErrorWriter caps the payload bytes written for one extracted record. Once
// the cap is hit the write is cut short and io.ErrShortWrite is reported, so an
// oversized record leaves a truncated file behind instead of growing past the
// remaining extraction budget.
type limitErrorWriter struct {
	w       io.Writer
	budget  int64
	written int64
}

func newLimitErrorWriter(w io.Writer, budget int64) *limitErrorWriter {
	return &limitErrorWriter{w: w, budget: budget}
}

func (l *limitErrorWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	left := l.budget - l.written
	if left <= 0 {
		return 0, io.ErrShortWrite
	}

	cut := int64(len(p)) > left
	if cut {
		p = p[:left]
	}
	n, err := l.w.Write(p)
	l.written += int64(n)
	if err == nil && cut {
		err = io.ErrShortWrite
	}
	return n, err
}

// limitWriter wraps w with the remaining extraction budget of a record. A
// negative maxSize means no budget and returns w itself.
func limitWriter(w io.Writer, maxSize int64) io.Writer {
	if maxSize < 0 {
		return w
	}
	return newLimitErrorWriter(w, maxSize)
}
