// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"context"
	"fmt"
	"io"
)

// FormatRecord returns the listing line of a record: the declared size left aligned
// in a 20 character field, a tab and the name.
func FormatRecord(name string, size uint64) string {
	return fmt.Sprintf("%-20d\t%s\n", size, name)
}

// List decodes all records of the pack in src and writes one [FormatRecord] line per
// record to w. Lines that were written before a decoding error stay written.
func List(ctx context.Context, src io.Reader, w io.Writer, cfg *Config) error {
	return list(ctx, src, "", w, cfg)
}

// ListFile opens the pack file at packPath and lists it to w, see [List].
func ListFile(ctx context.Context, packPath string, w io.Writer, cfg *Config) error {
	f, err := openFile(packPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return list(ctx, f, inputName(packPath), w, cfg)
}

func list(ctx context.Context, src io.Reader, name string, w io.Writer, cfg *Config) error {
	s := newSession(ctx, cfg, OperationList)
	return s.run(src, name, func(rec *Record) error {
		if _, err := io.WriteString(w, FormatRecord(rec.Name, rec.Size)); err != nil {
			return fail(s.td, "cannot write listing", err)
		}
		return nil
	}, nil)
}
