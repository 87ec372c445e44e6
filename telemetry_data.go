// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"context"
	"encoding/json"
	"time"
)

// Operations reported in [TelemetryData.Operation].
const (
	OperationList       = "list"
	OperationExtract    = "extract"
	OperationExtractOne = "extract_one"
	OperationPack       = "pack"
)

// TelemetryData holds all telemetry data of a list, extract or pack operation.
type TelemetryData struct {
	// Duration is the time the operation took
	Duration time.Duration `json:"duration"`

	// ExtractionErrors is the number of errors during the operation
	ExtractionErrors int64 `json:"extraction_errors"`

	// ExtractedFiles is the number of extracted files
	ExtractedFiles int64 `json:"extracted_files"`

	// ExtractionSize is the size of the extracted files
	ExtractionSize int64 `json:"extraction_size"`

	// InputCompression is the file extension of the detected input compression
	InputCompression string `json:"input_compression"`

	// InputSize is the size of the input
	InputSize int64 `json:"input_size"`

	// LastExtractionError is the last error during the operation
	LastExtractionError error `json:"last_extraction_error"`

	// NotFound is set if a single file extraction found no matching record
	NotFound bool `json:"not_found"`

	// Operation is the performed operation
	Operation string `json:"operation"`

	// PackedFiles is the number of files written into a pack
	PackedFiles int64 `json:"packed_files"`

	// PatternMismatches is the number of skipped records
	PatternMismatches int64 `json:"pattern_mismatches"`

	// RecordsRead is the number of decoded records
	RecordsRead int64 `json:"records_read"`

	// UnsupportedFiles is the number of skipped directory entries while packing
	UnsupportedFiles int64 `json:"unsupported_files"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastExtractionError != nil {
		lastError = m.LastExtractionError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastExtractionError string `json:"last_extraction_error"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after an operation has finished which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)
