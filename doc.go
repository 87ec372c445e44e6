// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

// Package spack reads and writes spack pack files, a flat binary container that
// concatenates an arbitrary number of named file records behind a 4 byte header.
//
// A pack file can be listed with [List], extracted completely with [ExtractAll] or
// searched for a single record with [ExtractOne]. The path based variants [ListFile],
// [ExtractAllFile] and [ExtractFile] open the pack file from disk. Records are decoded
// sequentially with a [Reader] and can be written with a [Writer] or [PackDir].
//
// Configuration is done using the [Config], which holds the logger, the telemetry hook,
// extraction limits and the target behavior. Pack files that are wrapped in a stream
// compressor (gzip, zstd, xz, ...) are detected by their magic bytes and decompressed
// transparently before the pack header is validated.
package spack
