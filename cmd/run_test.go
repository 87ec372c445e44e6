// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	spack "github.com/hashicorp/go-spack"
	"github.com/stretchr/testify/require"
)

// parse runs the kong parser on args
func parse(t *testing.T, args ...string) (*CLI, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Vars{"version": "test"},
		kong.Exit(func(int) {}),
		kong.Writers(io.Discard, io.Discard),
	)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	return &cli, err
}

func TestParse(t *testing.T) {
	cli, err := parse(t, "-x", "out", "-f", "a.txt", "-c", "-n", "--max-files=5", "pack.spack")
	require.NoError(t, err)
	require.Equal(t, "pack.spack", cli.PackFile)
	require.Equal(t, "out", cli.Extract)
	require.Equal(t, "a.txt", cli.File)
	require.True(t, cli.CreateDestination)
	require.True(t, cli.NoOverwrite)
	require.Equal(t, int64(5), cli.MaxFiles)
	require.Equal(t, int64(-1), cli.MaxExtractionSize)
	require.Equal(t, int64(-1), cli.MaxExtractionTime)
	require.Equal(t, int64(-1), cli.MaxInputSize)

	cfg := newConfig(cli, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.False(t, cfg.Overwrite())
	require.True(t, cfg.CreateDestination())
	require.Equal(t, int64(5), cfg.MaxFiles())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		args      []string
		expectErr string
	}{
		{name: "list", args: []string{"-l", "p.spack"}},
		{name: "extract", args: []string{"-x", "out", "p.spack"}},
		{name: "extract one", args: []string{"-x", "out", "-f", "a", "p.spack"}},
		{name: "pack", args: []string{"-p", "dir", "p.spack"}},
		{name: "list and extract", args: []string{"-l", "-x", "out", "p.spack"}, expectErr: "You can't specify -l and -x at the same time!"},
		{name: "file without extract", args: []string{"-l", "-f", "a", "p.spack"}, expectErr: "-f requires -x"},
		{name: "pack and list", args: []string{"-p", "dir", "-l", "p.spack"}, expectErr: "-p can't be combined with -l or -x"},
		{name: "no mode", args: []string{"p.spack"}, expectErr: "one of -l, -x or -p is required"},
		{name: "no pack file", args: []string{"-l"}, expectErr: "pack-file"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.args...)
			if len(tc.expectErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expectErr)
		})
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// pack a directory
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("xyz"), 0644))
	packPath := filepath.Join(t.TempDir(), "test.spack")
	cli := &CLI{Pack: src, PackFile: packPath, MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	require.NoError(t, execute(ctx, cli, newConfig(cli, logger), nil, io.Discard))

	// list it
	var out bytes.Buffer
	cli = &CLI{List: true, PackFile: packPath, MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	require.NoError(t, execute(ctx, cli, newConfig(cli, logger), nil, &out))
	require.Equal(t, spack.FormatRecord("a.txt", 3), out.String())

	// list from stdin
	data, err := os.ReadFile(packPath)
	require.NoError(t, err)
	out.Reset()
	cli = &CLI{List: true, PackFile: "-", MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	require.NoError(t, execute(ctx, cli, newConfig(cli, logger), bytes.NewReader(data), &out))
	require.Equal(t, spack.FormatRecord("a.txt", 3), out.String())

	// extract all
	dst := t.TempDir()
	cli = &CLI{Extract: dst, PackFile: packPath, MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	require.NoError(t, execute(ctx, cli, newConfig(cli, logger), nil, io.Discard))
	content, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("xyz"), content)

	// extract a missing file
	dst = t.TempDir()
	cli = &CLI{Extract: dst, File: "missing.txt", PackFile: packPath, MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	err = execute(ctx, cli, newConfig(cli, logger), nil, io.Discard)
	require.ErrorIs(t, err, spack.ErrNotFound)

	// missing pack file
	cli = &CLI{List: true, PackFile: filepath.Join(t.TempDir(), "missing.spack"), MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	err = execute(ctx, cli, newConfig(cli, logger), nil, io.Discard)
	require.ErrorIs(t, err, spack.ErrOpen)
}

func TestExecutePackToStdout(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("xyz"), 0644))

	var out bytes.Buffer
	cli := &CLI{Pack: src, PackFile: "-", MaxFiles: -1, MaxExtractionSize: -1, MaxInputSize: -1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, execute(context.Background(), cli, newConfig(cli, logger), nil, &out))
	require.Equal(t, []byte{0x37, 0x13, 0x01, 0x00, 0x05, 0x00, 'a', '.', 't', 'x', 't', 3, 0, 0, 0, 0, 0, 0, 0, 'x', 'y', 'z'}, out.Bytes())
}
