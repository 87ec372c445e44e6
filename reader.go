// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// chunkPrealloc caps the buffer that is allocated up front for a payload chunk.
// Larger chunks grow while they are read, so a truncated stream that declares a
// huge size fails without allocating the declared amount.
const chunkPrealloc = 1 << 20

// Record is one decoded file of a pack. Every call to [Reader.Next] returns a
// fresh Record that is owned by the caller.
type Record struct {
	// Name is the stored base name of the file.
	Name string

	// Size is the declared size as stored in the pack. Its low 32 bits are the
	// length of Chunk1 and its high 32 bits the length of Chunk2.
	Size uint64

	// Chunk1 holds the first part of the payload.
	Chunk1 []byte

	// Chunk2 holds the second part of the payload. It is nil if the high 32 bits
	// of Size are zero.
	Chunk2 []byte
}

// Len returns the number of payload bytes of the record.
func (r *Record) Len() int64 {
	return int64(len(r.Chunk1)) + int64(len(r.Chunk2))
}

// Open returns a reader over the payload, Chunk1 followed by Chunk2.
func (r *Record) Open() io.Reader {
	if len(r.Chunk2) == 0 {
		return bytes.NewReader(r.Chunk1)
	}
	return io.MultiReader(bytes.NewReader(r.Chunk1), bytes.NewReader(r.Chunk2))
}

// Reader decodes the records of a pack file in on-disk order. It never seeks and
// cannot be restarted.
type Reader struct {
	r   io.Reader
	err error
	n   int64
}

// NewReader validates the pack header of r and returns a [Reader] positioned at
// the first record. An invalid header is reported as [ErrFormat].
func NewReader(r io.Reader) (*Reader, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}
	return &Reader{r: r}, nil
}

// Next decodes the next record. It returns io.EOF once the stream ends cleanly
// between two records. A stream that ends inside a record yields
// [ErrStreamTruncated]. Errors are sticky: after the first error every further
// call returns the same error.
func (pr *Reader) Next() (*Record, error) {
	if pr.err != nil {
		return nil, pr.err
	}
	rec, err := pr.next()
	if err != nil {
		pr.err = err
		return nil, err
	}
	pr.n++
	return rec, nil
}

// Records returns the number of successfully decoded records.
func (pr *Reader) Records() int64 {
	return pr.n
}

func (pr *Reader) next() (*Record, error) {
	// name length, zero bytes at this point is the regular end of the pack
	var nameLen [2]byte
	if n, err := io.ReadFull(pr.r, nameLen[:]); err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, readError(pr.n, "name length", err)
	}

	name := make([]byte, binary.LittleEndian.Uint16(nameLen[:]))
	if _, err := io.ReadFull(pr.r, name); err != nil {
		return nil, readError(pr.n, "name", err)
	}

	var sizeField [8]byte
	if _, err := io.ReadFull(pr.r, sizeField[:]); err != nil {
		return nil, readError(pr.n, "size", err)
	}
	size := binary.LittleEndian.Uint64(sizeField[:])
	low, high := splitSize(size)

	// first chunk is always read, even if empty
	chunk1, err := readChunk(pr.r, low)
	if err != nil {
		return nil, readError(pr.n, "first chunk", err)
	}

	var chunk2 []byte
	if high > 0 {
		if chunk2, err = readChunk(pr.r, high); err != nil {
			return nil, readError(pr.n, "second chunk", err)
		}
	}

	return &Record{
		Name:   string(name),
		Size:   size,
		Chunk1: chunk1,
		Chunk2: chunk2,
	}, nil
}

// readChunk reads exactly n bytes from r. The buffer doubles while data arrives
// and its last step is cut to n, so it never holds more than the chunk.
func readChunk(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	size := int(n)
	buf := make([]byte, 0, min(size, chunkPrealloc))
	for len(buf) < size {
		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), min(2*cap(buf), size))
			copy(grown, buf)
			buf = grown
		}
		m, err := io.ReadFull(r, buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+m]
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// readError classifies a failed read of field in record idx. Running out of
// input is reported as ErrStreamTruncated, every other error is passed on.
func readError(idx int64, field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: record %d: %s", ErrStreamTruncated, idx, field)
	}
	return fmt.Errorf("record %d: cannot read %s: %w", idx, field, err)
}
