// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The configuration struct holds all configuration options for listing, extracting
// and packing. The configuration options can be adjusted using the option pattern style.
//
// The default configuration keeps the flat name semantics of the pack format: record
// names are joined to the destination without sanitization and existing files are
// truncated. Resource limits are disabled by default and can be enabled to
// guard against exhaustion by untrusted input.
type Config struct {
	// continueOnError decides if the extraction should be continued if an output
	// file cannot be written. Decoding errors always end the operation.
	continueOnError bool

	// create destination directory if it does not exist
	createDestination bool

	// customCreateDirMode is the file mode for a created destination directory (respecting umask)
	customCreateDirMode fs.FileMode

	// customFileMode is the file mode for extracted files (respecting umask)
	customFileMode fs.FileMode

	// denyPathTraversal rejects record names that escape the destination
	denyPathTraversal bool

	// inputCompression forces a decompressor for the input, identified by its file extension
	inputCompression string

	// logger stream for extraction
	logger logger

	// maxExtractionSize is the maximum size over all extracted files.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// maxFiles is the maximum of files that are extracted or packed.
	// Set value to -1 to disable the check.
	maxFiles int64

	// maxInputSize is the maximum size of the input
	// Set value to -1 to disable the check.
	maxInputSize int64

	// noDecompression disables the detection of compressed input
	noDecompression bool

	// Define if files should be overwritten in the destination
	overwrite bool

	// patterns is a list of file patterns to match records to extract
	patterns []string

	// telemetryHook is a function to consume telemetry data after a finished operation
	// Important: do not adjust this value after extraction started
	telemetryHook TelemetryHook
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {

	// check if disabled
	if c.MaxFiles() == -1 {
		return nil
	}

	// check value
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize checks if fileSize exceeds configured maximum. If the maximum is exceeded,
// a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(fileSize int64) error {

	// check if disabled
	if c.MaxExtractionSize() == -1 {
		return nil
	}

	// check value
	if fileSize > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// ContinueOnError returns true if the extraction should continue if an output file
// cannot be written.
func (c *Config) ContinueOnError() bool {
	return c.continueOnError
}

// CreateDestination returns true if the destination directory should be
// created if it does not exist.
func (c *Config) CreateDestination() bool {
	return c.createDestination
}

// CustomCreateDirMode returns the file mode for a created destination directory.
// (respecting umask)
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomFileMode returns the file mode for extracted files. (respecting umask)
func (c *Config) CustomFileMode() fs.FileMode {
	return c.customFileMode
}

// DenyPathTraversal returns true if record names that escape the destination
// directory are rejected.
func (c *Config) DenyPathTraversal() bool {
	return c.denyPathTraversal
}

// InputCompression returns the file extension of the forced input decompressor.
// An empty string means the compression is detected from the input.
func (c *Config) InputCompression() string {
	return c.inputCompression
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all extracted files.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles returns the maximum of files that are extracted or packed.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// MaxInputSize returns the maximum size of the input.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// NoDecompression returns true if compressed input should NOT be detected.
func (c *Config) NoDecompression() bool {
	return c.noDecompression
}

// Overwrite returns true if files should be overwritten in the destination.
func (c *Config) Overwrite() bool {
	return c.overwrite
}

// Patterns returns a list of unix-filepath patterns to match records to extract.
// Patterns are matched using [filepath.Match](https://golang.org/pkg/path/filepath/#Match).
func (c *Config) Patterns() []string {
	return c.patterns
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

const (
	defaultContinueOnError     = false         // stop on error and return error
	defaultCreateDestination   = false         // don't create destination directory
	defaultCustomCreateDirMode = 0750          // default directory permissions rwxr-x---
	defaultCustomFileMode      = 0644          // default file permissions rw-r--r--
	defaultDenyPathTraversal   = false         // keep flat name semantics
	defaultInputCompression    = ""            // detect compression from input
	defaultMaxFiles            = -1            // unlimited, packs carry no record count limit
	defaultMaxExtractionSize   = -1            // unlimited, payloads reach 2*(2^32-1) bytes
	defaultMaxInputSize        = -1            // unlimited
	defaultNoDecompression     = false         // detect compressed input
	defaultOverwrite           = true          // truncate existing files
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		continueOnError:     defaultContinueOnError,
		createDestination:   defaultCreateDestination,
		customCreateDirMode: defaultCustomCreateDirMode,
		customFileMode:      defaultCustomFileMode,
		denyPathTraversal:   defaultDenyPathTraversal,
		inputCompression:    defaultInputCompression,
		logger:              defaultLogger,
		maxFiles:            defaultMaxFiles,
		maxExtractionSize:   defaultMaxExtractionSize,
		maxInputSize:        defaultMaxInputSize,
		noDecompression:     defaultNoDecompression,
		overwrite:           defaultOverwrite,
		telemetryHook:       defaultTelemetryHook,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithContinueOnError options pattern function to continue if an output file cannot be
// written. If set to true, the error is logged and the extraction continues with the next
// record. Errors while decoding the pack always end the operation.
func WithContinueOnError(yes bool) ConfigOption {
	return func(c *Config) {
		c.continueOnError = yes
	}
}

// WithCreateDestination options pattern function to create
// destination directory if it does not exist.
func WithCreateDestination(create bool) ConfigOption {
	return func(c *Config) {
		c.createDestination = create
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for a created destination directory. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomFileMode options pattern function to set the file mode for
// extracted files. (respecting umask)
func WithCustomFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customFileMode = mode
	}
}

// WithDenyPathTraversal options pattern function to reject record names that
// resolve outside of the destination directory or pass through a symlink.
func WithDenyPathTraversal(deny bool) ConfigOption {
	return func(c *Config) {
		c.denyPathTraversal = deny
	}
}

// WithInputCompression options pattern function to force a decompressor for the input,
// identified by its file extension (e.g. "gz", "zst", "br").
func WithInputCompression(ext string) ConfigOption {
	return func(c *Config) {
		c.inputCompression = ext
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all
// extracted files. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles options pattern function to set maximum number of extracted or packed
// files. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithMaxInputSize options pattern function to set MaxInputSize for the input. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = maxInputSize
	}
}

// WithNoDecompression options pattern function to disable the detection of compressed input.
func WithNoDecompression(disable bool) ConfigOption {
	return func(c *Config) {
		c.noDecompression = disable
	}
}

// WithOverwrite options pattern function specify if files should be overwritten in the destination.
func WithOverwrite(enable bool) ConfigOption {
	return func(c *Config) {
		c.overwrite = enable
	}
}

// WithPatterns options pattern function to set filepath pattern, that records need to match
// to be extracted by [ExtractAll]. Patterns are matched using [pkg/path/filepath.Match].
func WithPatterns(pattern ...string) ConfigOption {
	return func(c *Config) {
		c.patterns = append(c.patterns, pattern...)
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after
// every operation.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
