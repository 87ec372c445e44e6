// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"fmt"
	"io"
)

// headerReader holds back the leading bytes of an input so they can be matched
// against the pack magic and the compression magics, and then replays them
// ahead of the rest of the stream. Detection therefore works on pipes and STDIN
// that cannot seek.
type headerReader struct {
	src     io.Reader
	pending []byte
}

// newHeaderReader buffers up to n leading bytes of src. A shorter input is not an
// error, the header validation reports it later.
func newHeaderReader(src io.Reader, n int) (*headerReader, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(src, buf)
	switch err {
	case nil, io.EOF, io.ErrUnexpectedEOF:
	default:
		return nil, fmt.Errorf("cannot peek input: %w", err)
	}
	return &headerReader{src: src, pending: buf[:got]}, nil
}

// PeekHeader returns the buffered bytes that were not replayed yet.
func (h *headerReader) PeekHeader() []byte {
	return h.pending
}

func (h *headerReader) Read(b []byte) (int, error) {
	if len(h.pending) == 0 {
		return h.src.Read(b)
	}
	n := copy(b, h.pending)
	h.pending = h.pending[n:]
	return n, nil
}
