// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// Magic identifies a pack file. On disk it is stored little-endian as 0x37 0x13,
	// which reads as 4919 in decimal.
	Magic uint16 = 0x1337

	// Version is the only supported format version.
	Version uint16 = 1

	// MaxNameLength is the longest record name the 16 bit length field can express.
	MaxNameLength = math.MaxUint16

	// MaxPayloadLength is the longest payload that fits into both chunks.
	MaxPayloadLength = 2 * math.MaxUint32

	// headerLength is the length of magic and version
	headerLength = 4
)

// magicBytesPack is the header prefix of an uncompressed pack file
var magicBytesPack = [][]byte{
	{0x37, 0x13},
}

// isPack checks if the header matches the magic bytes of a pack file
func isPack(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesPack)
}

// splitSize separates a declared record size into the lengths of the first and
// the second payload chunk. The first chunk is always read, the second one only
// if its length is not zero.
func splitSize(size uint64) (low uint32, high uint32) {
	return uint32(size & 0xFFFFFFFF), uint32(size >> 32)
}

// joinSize is the inverse of splitSize.
func joinSize(low uint32, high uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}

// encodeSize returns the declared size for a payload of n bytes. Payloads that
// do not fit into the first chunk fill it completely and put the rest into the
// second chunk, so the declared size differs from n in that case.
func encodeSize(n int64) (uint64, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative payload length %d", n)
	}
	if n <= math.MaxUint32 {
		return uint64(n), nil
	}
	if n > MaxPayloadLength {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, n)
	}
	return joinSize(math.MaxUint32, uint32(n-math.MaxUint32)), nil
}

// payloadLength returns the number of payload bytes that follow a size field.
func payloadLength(size uint64) int64 {
	low, high := splitSize(size)
	return int64(low) + int64(high)
}

// readHeader consumes the pack header from r and validates magic and version.
func readHeader(r io.Reader) error {
	var hdr [headerLength]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("%w: cannot read header: %w", ErrFormat, err)
	}
	if magic := binary.LittleEndian.Uint16(hdr[0:2]); magic != Magic {
		return fmt.Errorf("%w: unexpected magic %d", ErrFormat, magic)
	}
	if version := binary.LittleEndian.Uint16(hdr[2:4]); version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	return nil
}

// writeHeader writes magic and version to w.
func writeHeader(w io.Writer) error {
	var hdr [headerLength]byte
	binary.LittleEndian.PutUint16(hdr[0:2], Magic)
	binary.LittleEndian.PutUint16(hdr[2:4], Version)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("cannot write header: %w", err)
	}
	return nil
}
