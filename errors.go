// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import "errors"

var (
	// ErrOpen is returned if the pack file or an output file cannot be opened.
	ErrOpen = errors.New("cannot open file")

	// ErrFormat is returned if the pack header carries an unknown magic or version.
	ErrFormat = errors.New("invalid pack format")

	// ErrStreamTruncated is returned if a record field declares more bytes than
	// the stream holds.
	ErrStreamTruncated = errors.New("pack stream truncated")

	// ErrNotFound is returned by [ExtractOne] if no record matched the requested
	// name. It is informational and does not indicate a broken pack file.
	ErrNotFound = errors.New("file not found in pack")

	// ErrMaxFilesExceeded indicates that the maximum number of files is exceeded.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded indicates that the maximum size is exceeded.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrMaxInputSizeExceeded indicates that more input was offered than allowed.
	ErrMaxInputSizeExceeded = errors.New("maximum input size exceeded")

	// ErrPathTraversal is returned if a record name escapes the destination
	// and [WithDenyPathTraversal] is enabled.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrNameTooLong is returned by the [Writer] for names above [MaxNameLength] bytes.
	ErrNameTooLong = errors.New("record name too long")

	// ErrRecordTooLarge is returned by the [Writer] for payloads that cannot be
	// expressed with the split size encoding.
	ErrRecordTooLarge = errors.New("record too large")
)
