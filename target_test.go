// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package spack_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"testing"

	"github.com/golang/mock/gomock"
	spack "github.com/hashicorp/go-spack"
	"github.com/stretchr/testify/require"
)

// readInto returns a CreateFile implementation that stores the content in files
func readInto(files map[string][]byte) func(string, io.Reader, fs.FileMode, bool, int64) (int64, error) {
	return func(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
		data, err := io.ReadAll(src)
		files[path] = data
		return int64(len(data)), err
	}
}

func TestExtractOneCreatesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	data := rawPack(
		rawRecord("a", 1, []byte("a")),
		rawRecord("b", 2, []byte("bb")),
		rawRecord("c", 3, []byte("ccc")),
	)

	files := map[string][]byte{}
	target := NewMockTarget(ctrl)
	target.EXPECT().
		CreateFile("b", gomock.Any(), fs.FileMode(0644), true, int64(-1)).
		DoAndReturn(readInto(files)).
		Times(1)

	require.NoError(t, spack.ExtractOne(context.Background(), target, bytes.NewReader(data), "b", "", nil))
	require.Equal(t, []byte("bb"), files["b"])
}

func TestExtractAllDefaultConfigLargePack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pack larger than 1 GiB in short mode")
	}

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	n := int64(1<<30) + 16
	target := NewMockTarget(ctrl)
	target.EXPECT().
		CreateFile("big", gomock.Any(), fs.FileMode(0644), true, int64(-1)).
		DoAndReturn(func(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
			requirePattern(t, src, n)
			return n, nil
		}).
		Times(1)

	require.NoError(t, spack.ExtractAll(context.Background(), target, largePack("big", n), "", nil))
}

func TestExtractNotFoundTouchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no call is expected, the destination is not even checked
	target := NewMockTarget(ctrl)
	data := rawPack(rawRecord("a", 1, []byte("a")))
	err := spack.ExtractOne(context.Background(), target, bytes.NewReader(data), "missing", "out", nil)
	require.ErrorIs(t, err, spack.ErrNotFound)
}

func TestExtractPreparesDestinationOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	data := rawPack(
		rawRecord("a", 1, []byte("a")),
		rawRecord("b", 2, []byte("bb")),
	)

	files := map[string][]byte{}
	target := NewMockTarget(ctrl)
	gomock.InOrder(
		target.EXPECT().Lstat("out").Return(nil, fmt.Errorf("lstat out: %w", fs.ErrNotExist)),
		target.EXPECT().CreateDir("out", fs.FileMode(0700)).Return(nil),
		target.EXPECT().CreateFile("out/a", gomock.Any(), fs.FileMode(0600), false, int64(-1)).DoAndReturn(readInto(files)),
		target.EXPECT().CreateFile("out/b", gomock.Any(), fs.FileMode(0600), false, int64(-1)).DoAndReturn(readInto(files)),
	)

	cfg := spack.NewConfig(
		spack.WithCreateDestination(true),
		spack.WithCustomCreateDirMode(0700),
		spack.WithCustomFileMode(0600),
		spack.WithMaxExtractionSize(-1),
		spack.WithOverwrite(false),
	)
	require.NoError(t, spack.ExtractAll(context.Background(), target, bytes.NewReader(data), "out", cfg))
	require.Equal(t, map[string][]byte{"out/a": []byte("a"), "out/b": []byte("bb")}, files)
}

func TestExtractContinueOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	data := rawPack(
		rawRecord("a", 1, []byte("a")),
		rawRecord("b", 2, []byte("bb")),
	)

	files := map[string][]byte{}
	failure := errors.New("disk full")
	target := NewMockTarget(ctrl)
	target.EXPECT().CreateFile("a", gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), failure)
	target.EXPECT().CreateFile("b", gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(readInto(files))

	var td *spack.TelemetryData
	cfg := spack.NewConfig(
		spack.WithContinueOnError(true),
		spack.WithTelemetryHook(func(ctx context.Context, d *spack.TelemetryData) {
			td = d
		}),
	)
	require.NoError(t, spack.ExtractAll(context.Background(), target, bytes.NewReader(data), "", cfg))
	require.Equal(t, []byte("bb"), files["b"])
	require.Equal(t, int64(1), td.ExtractionErrors)
	require.Equal(t, int64(1), td.ExtractedFiles)
	require.ErrorIs(t, td.LastExtractionError, failure)
	require.ErrorIs(t, td.LastExtractionError, spack.ErrOpen)
}

func TestExtractStopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	data := rawPack(
		rawRecord("a", 1, []byte("a")),
		rawRecord("b", 2, []byte("bb")),
	)

	failure := errors.New("permission denied")
	target := NewMockTarget(ctrl)
	target.EXPECT().CreateFile("a", gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), failure)

	err := spack.ExtractAll(context.Background(), target, bytes.NewReader(data), "", nil)
	require.ErrorIs(t, err, failure)
	require.ErrorIs(t, err, spack.ErrOpen)
}

func TestSecurityCheckMemory(t *testing.T) {
	cases := []struct {
		name      string
		record    string
		expectErr bool
	}{
		{name: "plain", record: "file.txt"},
		{name: "sub directory", record: "dir/file.txt"},
		{name: "inner dot dot", record: "dir/../file.txt"},
		{name: "leading dot dot", record: "../file.txt", expectErr: true},
		{name: "nested dot dot", record: "dir/../../file.txt", expectErr: true},
		{name: "absolute", record: "/file.txt", expectErr: true},
		{name: "empty", record: "", expectErr: true},
	}

	cfg := spack.NewConfig(spack.WithDenyPathTraversal(true), spack.WithCreateDestination(true))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm := spack.NewTargetMemory()
			data := rawPack(rawRecord(tc.record, 1, []byte("x")))
			err := spack.ExtractAll(context.Background(), tm, bytes.NewReader(data), "out", cfg)
			if tc.expectErr {
				require.ErrorIs(t, err, spack.ErrPathTraversal)
				require.Equal(t, []string{"out"}, tm.Paths())
				return
			}
			if err != nil {
				// the memory target only accepts clean paths
				require.ErrorIs(t, err, fs.ErrInvalid)
				return
			}
			require.Len(t, tm.Paths(), 2)
		})
	}
}
