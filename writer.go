// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer encodes records into a pack file.
type Writer struct {
	w io.Writer
	n int64
}

// NewWriter writes the pack header to w and returns a [Writer] for the records.
func NewWriter(w io.Writer) (*Writer, error) {
	if err := writeHeader(w); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// Records returns the number of records written so far.
func (pw *Writer) Records() int64 {
	return pw.n
}

// WriteRecord adds a record with the given name and payload.
func (pw *Writer) WriteRecord(name string, data []byte) error {
	return pw.WriteFrom(name, int64(len(data)), bytes.NewReader(data))
}

// WriteFrom adds a record with the given name and copies exactly n payload bytes
// from src. Payloads longer than 2^32-1 bytes are stored in two chunks.
func (pw *Writer) WriteFrom(name string, n int64, src io.Reader) error {
	size, err := encodeSize(n)
	if err != nil {
		return err
	}
	if err := pw.writeFields(name, size); err != nil {
		return err
	}
	written, err := io.CopyN(pw.w, src, n)
	if err != nil {
		return fmt.Errorf("cannot write payload of %s (%d of %d bytes): %w", name, written, n, err)
	}
	pw.n++
	return nil
}

// WriteRaw adds a record with an explicit declared size. The chunk lengths must
// match the low and high 32 bits of size.
func (pw *Writer) WriteRaw(name string, size uint64, chunk1 []byte, chunk2 []byte) error {
	low, _ := splitSize(size)
	if uint64(len(chunk1)) != uint64(low) || int64(len(chunk1))+int64(len(chunk2)) != payloadLength(size) {
		return fmt.Errorf("chunk lengths %d/%d do not match size %d", len(chunk1), len(chunk2), size)
	}
	if err := pw.writeFields(name, size); err != nil {
		return err
	}
	if _, err := pw.w.Write(chunk1); err != nil {
		return fmt.Errorf("cannot write first chunk of %s: %w", name, err)
	}
	if len(chunk2) > 0 {
		if _, err := pw.w.Write(chunk2); err != nil {
			return fmt.Errorf("cannot write second chunk of %s: %w", name, err)
		}
	}
	pw.n++
	return nil
}

// writeFields writes name length, name and size.
func (pw *Writer) writeFields(name string, size uint64) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	buf := make([]byte, 2+len(name)+8)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(name)))
	copy(buf[2:], name)
	binary.LittleEndian.PutUint64(buf[2+len(name):], size)
	if _, err := pw.w.Write(buf); err != nil {
		return fmt.Errorf("cannot write record %s: %w", name, err)
	}
	return nil
}
