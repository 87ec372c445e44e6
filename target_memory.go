// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"sync"
	"time"
)

// TargetMemory is an in-memory filesystem implementation. It is a map of file paths to
// MemoryEntry. Extracted records can be inspected through the [fs.FS] interface, which
// makes the target useful for dry runs and tests. Permissions are recorded but not
// enforced.
type TargetMemory struct {
	files sync.Map // map[string]*MemoryEntry
}

// NewTargetMemory creates a new in-memory filesystem.
func NewTargetMemory() *TargetMemory {
	return &TargetMemory{}
}

// CreateFile creates a new file in the in-memory filesystem. The file is created with the given mode.
// If the overwrite flag is set to false and the file already exists, an error is returned. If the overwrite
// flag is set to true, the file is replaced. The maxSize parameter can be used to limit the size of the file.
// If the file exceeds the maxSize, an error is returned. If the file is created successfully, the number of bytes
// written is returned.
func (m *TargetMemory) CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	if !fs.ValidPath(path) {
		return 0, fmt.Errorf("%w: %s", fs.ErrInvalid, path)
	}
	if e, ok := m.files.Load(path); ok {
		if e.(*MemoryEntry).FileInfo.IsDir() {
			return 0, fmt.Errorf("is a directory: %w: %s", fs.ErrInvalid, path)
		}
		if !overwrite {
			return 0, fmt.Errorf("%w: %s", fs.ErrExist, path)
		}
	}

	// create byte buffered writer
	var buf bytes.Buffer
	w := limitWriter(&buf, maxSize)

	// write to buffer
	n, err := io.Copy(w, src)
	if err != nil {
		return n, err
	}

	// create entry
	m.files.Store(path, &MemoryEntry{
		FileInfo: &MemoryFileInfo{name: pathBase(path), size: n, mode: mode.Perm(), modTime: now()},
		Data:     buf.Bytes(),
	})

	// return number of bytes written
	return n, nil
}

// CreateDir creates a new directory in the in-memory filesystem.
// If the directory already exists, nothing is done. If the directory does not exist, it is created.
func (m *TargetMemory) CreateDir(path string, mode fs.FileMode) error {
	if !fs.ValidPath(path) {
		return fmt.Errorf("%w: %s", fs.ErrInvalid, path)
	}

	// check if an entry already exists
	if _, ok := m.files.Load(path); ok {
		return nil
	}

	// create entry
	m.files.Store(path, &MemoryEntry{
		FileInfo: &MemoryFileInfo{name: pathBase(path), mode: mode.Perm() | fs.ModeDir, modTime: now()},
	})

	return nil
}

// Lstat returns the FileInfo for the given path. If the path does not exist, an error is returned.
func (m *TargetMemory) Lstat(path string) (fs.FileInfo, error) {
	if !fs.ValidPath(path) {
		return nil, fmt.Errorf("%w: %s", fs.ErrInvalid, path)
	}
	if e, ok := m.files.Load(path); ok {
		return e.(*MemoryEntry).FileInfo, nil
	}
	return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, path)
}

// Open opens the named file for reading. If the file does not exist, or is a
// directory, an error is returned.
func (m *TargetMemory) Open(path string) (fs.File, error) {
	if !fs.ValidPath(path) {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrInvalid}
	}

	// get entry
	e, ok := m.files.Load(path)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}

	// handle directory
	me := e.(*MemoryEntry)
	if me.FileInfo.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fmt.Errorf("cannot open directory")}
	}

	// return a copy, so reading does not consume the stored data
	return &MemoryEntry{FileInfo: me.FileInfo, Data: me.Data}, nil
}

// ReadFile returns the content of the named file.
func (m *TargetMemory) ReadFile(path string) ([]byte, error) {
	f, err := m.Open(path)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), f.(*MemoryEntry).Data...), nil
}

// Paths returns the sorted paths of all entries.
func (m *TargetMemory) Paths() []string {
	var paths []string
	m.files.Range(func(key, _ any) bool {
		paths = append(paths, key.(string))
		return true
	})
	sort.Strings(paths)
	return paths
}

// pathBase returns the last element of a slash separated path
func pathBase(p string) string {
	return path.Base(p)
}

// MemoryEntry is an entry in the in-memory filesystem
type MemoryEntry struct {
	FileInfo fs.FileInfo
	Data     []byte
}

func (me *MemoryEntry) Stat() (fs.FileInfo, error) {
	return me.FileInfo, nil
}

func (me *MemoryEntry) Read(p []byte) (int, error) {
	if len(me.Data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, me.Data)
	me.Data = me.Data[n:]
	return n, nil
}

func (me *MemoryEntry) Close() error {
	return nil
}

// MemoryFileInfo is a FileInfo implementation for the in-memory filesystem
type MemoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// Name returns the name of the file
func (fi *MemoryFileInfo) Name() string {
	return fi.name
}

// Size returns the size of the file
func (fi *MemoryFileInfo) Size() int64 {
	return fi.size
}

// Mode returns the mode of the file
func (fi *MemoryFileInfo) Mode() fs.FileMode {
	return fi.mode
}

// ModTime returns the modification time of the file
func (fi *MemoryFileInfo) ModTime() time.Time {
	return fi.modTime
}

// IsDir returns true if the file is a directory
func (fi *MemoryFileInfo) IsDir() bool {
	return fi.mode.IsDir()
}

// Sys returns the underlying data source (nil for in-memory filesystem)
func (fi *MemoryFileInfo) Sys() any {
	return nil
}
