// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// File extensions of the supported input compressions.
const (
	FileExtensionBrotli = "br"
	FileExtensionBzip2  = "bz2"
	FileExtensionGZip   = "gz"
	FileExtensionLZ4    = "lz4"
	FileExtensionSnappy = "sz"
	FileExtensionXz     = "xz"
	FileExtensionZlib   = "zz"
	FileExtensionZstd   = "zst"
)

// decompressionFunc wraps src into a decompressing reader.
type decompressionFunc func(io.Reader) (io.Reader, error)

// headerCheck is a function that checks if the given header matches the expected magic bytes.
type headerCheck func([]byte) bool

type availableDecompressor struct {
	Decompress  decompressionFunc
	HeaderCheck headerCheck
	MagicBytes  [][]byte
	Offset      int
}

// availableDecompressors is collection of stream decompressors with
// the required magic bytes, keyed by file extension
var availableDecompressors = map[string]availableDecompressor{
	FileExtensionBrotli: {
		Decompress:  decompressBrotliStream,
		HeaderCheck: isBrotli,
	},
	FileExtensionBzip2: {
		Decompress:  decompressBzip2Stream,
		HeaderCheck: isBzip2,
		MagicBytes:  magicBytesBzip2,
	},
	FileExtensionGZip: {
		Decompress:  decompressGZipStream,
		HeaderCheck: isGZip,
		MagicBytes:  magicBytesGZip,
	},
	FileExtensionLZ4: {
		Decompress:  decompressLZ4Stream,
		HeaderCheck: isLZ4,
		MagicBytes:  magicBytesLZ4,
	},
	FileExtensionSnappy: {
		Decompress:  decompressSnappyStream,
		HeaderCheck: isSnappy,
		MagicBytes:  magicBytesSnappy,
	},
	FileExtensionXz: {
		Decompress:  decompressXzStream,
		HeaderCheck: isXz,
		MagicBytes:  magicBytesXz,
	},
	FileExtensionZlib: {
		Decompress:  decompressZlibStream,
		HeaderCheck: isZlib,
		MagicBytes:  magicBytesZlib,
	},
	FileExtensionZstd: {
		Decompress:  decompressZstdStream,
		HeaderCheck: isZstd,
		MagicBytes:  magicBytesZstd,
	},
}

// maxHeaderLength is the maximum header length of all decompressors
var maxHeaderLength int

// decompressorOrder is the deterministic order in which headers are checked
var decompressorOrder []string

// init calculates the maximum header length
func init() {
	for ext, d := range availableDecompressors {
		needs := d.Offset
		for _, mb := range d.MagicBytes {
			if len(mb)+d.Offset > needs {
				needs = len(mb) + d.Offset
			}
		}
		if needs > maxHeaderLength {
			maxHeaderLength = needs
		}
		decompressorOrder = append(decompressorOrder, ext)
	}
	sort.Strings(decompressorOrder)
}

// matchesMagicBytes checks if data contains one of magicBytes at offset
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}

// SupportedInputCompressions returns the file extensions of all supported input compressions.
func SupportedInputCompressions() []string {
	return append([]string(nil), decompressorOrder...)
}

// openPack prepares src for decoding. The input is limited to the configured maximum
// input size, a compressed input is detected and unwrapped and the pack header is
// validated. The returned close function releases the decompressor.
func openPack(ctx context.Context, src io.Reader, inputName string, cfg *Config, td *TelemetryData) (*Reader, *limitErrorReader, func(), error) {
	noop := func() {}

	// limit input size
	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())

	// check if context is canceled
	if err := ctx.Err(); err != nil {
		return nil, limitedReader, noop, fmt.Errorf("context error: %w", err)
	}

	input, ext, err := unwrapInput(limitedReader, inputName, cfg)
	if err != nil {
		return nil, limitedReader, noop, err
	}
	td.InputCompression = ext
	closeFn := noop
	if closer, ok := input.(io.Closer); ok {
		closeFn = func() { closer.Close() }
	}
	if len(ext) > 0 {
		cfg.Logger().Debug("decompress input", "fileExt", ext)
	}

	pr, err := NewReader(input)
	if err != nil {
		closeFn()
		return nil, limitedReader, noop, err
	}
	return pr, limitedReader, closeFn, nil
}

// unwrapInput returns a reader over the uncompressed pack and the file extension of
// the detected compression, which is empty for an uncompressed input.
func unwrapInput(src io.Reader, inputName string, cfg *Config) (io.Reader, string, error) {
	if cfg.NoDecompression() {
		return src, "", nil
	}

	// forced compression, or brotli that can only be identified by name
	ext := cfg.InputCompression()
	if len(ext) == 0 && strings.HasSuffix(strings.ToLower(inputName), "."+FileExtensionBrotli) {
		ext = FileExtensionBrotli
	}
	if len(ext) > 0 {
		d, ok := availableDecompressors[ext]
		if !ok {
			return nil, "", fmt.Errorf("unsupported input compression %q", ext)
		}
		r, err := d.Decompress(src)
		if err != nil {
			return nil, "", fmt.Errorf("%w: cannot start decompression (%s): %w", ErrFormat, ext, err)
		}
		return r, ext, nil
	}

	// convert to peek header
	hr, err := newHeaderReader(src, maxHeaderLength)
	if err != nil {
		return nil, "", err
	}
	header := hr.PeekHeader()

	// plain pack file
	if isPack(header) {
		return hr, "", nil
	}

	for _, ext := range decompressorOrder {
		d := availableDecompressors[ext]
		if !d.HeaderCheck(header) {
			continue
		}
		r, err := d.Decompress(hr)
		if err != nil {
			return nil, "", fmt.Errorf("%w: cannot start decompression (%s): %w", ErrFormat, ext, err)
		}
		return r, ext, nil
	}

	// let the header validation report the unknown input
	return hr, "", nil
}

var magicBytesBzip2 = [][]byte{
	[]byte("BZh1"),
	[]byte("BZh2"),
	[]byte("BZh3"),
	[]byte("BZh4"),
	[]byte("BZh5"),
	[]byte("BZh6"),
	[]byte("BZh7"),
	[]byte("BZh8"),
	[]byte("BZh9"),
}

var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

var magicBytesLZ4 = [][]byte{
	{0x04, 0x22, 0x4D, 0x18},
}

var magicBytesSnappy = [][]byte{
	append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...),
}

var magicBytesXz = [][]byte{
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

var magicBytesZlib = [][]byte{
	{0x78, 0x01},
	{0x78, 0x5e},
	{0x78, 0x9c},
	{0x78, 0xda},
	{0x78, 0x20},
	{0x78, 0x7d},
	{0x78, 0xbb},
	{0x78, 0xf9},
}

var magicBytesZstd = [][]byte{
	{0x28, 0xb5, 0x2f, 0xfd},
}

// isBrotli always reports false, brotli streams carry no magic bytes
func isBrotli(header []byte) bool {
	return false
}

func isBzip2(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesBzip2)
}

func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

func isLZ4(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesLZ4)
}

func isSnappy(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesSnappy)
}

func isXz(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesXz)
}

func isZlib(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesZlib)
}

func isZstd(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesZstd)
}

func decompressBrotliStream(src io.Reader) (io.Reader, error) {
	return brotli.NewReader(src), nil
}

func decompressBzip2Stream(src io.Reader) (io.Reader, error) {
	return bzip2.NewReader(src, &bzip2.ReaderConfig{})
}

func decompressGZipStream(src io.Reader) (io.Reader, error) {
	return gzip.NewReader(src)
}

func decompressLZ4Stream(src io.Reader) (io.Reader, error) {
	return lz4.NewReader(src), nil
}

func decompressSnappyStream(src io.Reader) (io.Reader, error) {
	return snappy.NewReader(src), nil
}

func decompressXzStream(src io.Reader) (io.Reader, error) {
	return xz.NewReader(src)
}

func decompressZlibStream(src io.Reader) (io.Reader, error) {
	return zlib.NewReader(src)
}

func decompressZstdStream(src io.Reader) (io.Reader, error) {
	zr, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}
