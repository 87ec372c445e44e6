// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	spack "github.com/hashicorp/go-spack"
	"github.com/pkg/errors"
)

// notFoundMessage is printed if the record requested with -f is not part of the pack.
const notFoundMessage = "Your file was not found!"

// CLI are the cli parameters for the spack binary
type CLI struct {
	PackFile          string           `arg:"" name:"pack-file" help:"Path to pack file. (\"-\" for STDIN)"`
	List              bool             `short:"l" help:"List all records of the pack."`
	Extract           string           `short:"x" placeholder:"DIR" help:"Extract records into DIR."`
	File              string           `short:"f" placeholder:"FILE" help:"Extract only the record called FILE (requires -x)."`
	Pack              string           `short:"p" placeholder:"DIR" help:"Pack all regular files of DIR into the pack file."`
	ContinueOnError   bool             `short:"C" help:"Continue extraction if a file cannot be written."`
	CreateDestination bool             `short:"c" help:"Create destination directory if it does not exist."`
	DenyTraversal     bool             `short:"D" help:"Deny record names that leave the destination directory."`
	InputCompression  string           `optional:"" placeholder:"EXT" help:"Force the decompression of the input (br, bz2, gz, lz4, sz, xz, zst, zz)."`
	MaxFiles          int64            `optional:"" default:"-1" help:"Maximum files that are extracted or packed before stop. (disable check: -1)"`
	MaxExtractionSize int64            `optional:"" default:"-1" help:"Maximum extraction size that allowed is (in bytes). (disable check: -1)"`
	MaxExtractionTime int64            `optional:"" default:"-1" help:"Maximum time that an operation should take (in seconds). (disable check: -1)"`
	MaxInputSize      int64            `optional:"" default:"-1" help:"Maximum input size that allowed is (in bytes). (disable check: -1)"`
	Metrics           bool             `short:"M" optional:"" default:"false" help:"Print metrics to log after the operation."`
	NoDecompression   bool             `short:"N" help:"Do not detect compressed input."`
	NoOverwrite       bool             `short:"n" help:"Do not overwrite existing files."`
	Verbose           bool             `short:"v" optional:"" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// Validate checks the combination of modes, it is called by kong after parsing.
func (c *CLI) Validate() error {
	switch {
	case c.List && len(c.Extract) > 0:
		return errors.New("You can't specify -l and -x at the same time!")
	case len(c.Pack) > 0 && (c.List || len(c.Extract) > 0):
		return errors.New("-p can't be combined with -l or -x")
	case len(c.File) > 0 && len(c.Extract) == 0:
		return errors.New("-f requires -x")
	case !c.List && len(c.Extract) == 0 && len(c.Pack) == 0:
		return errors.New("one of -l, -x or -p is required")
	}
	return nil
}

// Run the entrypoint into spack as a cli tool
func Run(version, commit, date string) {
	ctx := context.Background()
	var cli CLI
	kong.Parse(&cli,
		kong.Description("Pack, list and extract spack files"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if cli.MaxExtractionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(cli.MaxExtractionTime))
		defer cancel()
	}

	err := execute(ctx, &cli, newConfig(&cli, logger), os.Stdin, os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, spack.ErrNotFound):
		fmt.Fprintln(os.Stdout, notFoundMessage)
	default:
		logger.Error("operation failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newConfig maps the cli parameters onto a spack configuration.
func newConfig(cli *CLI, logger *slog.Logger) *spack.Config {

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *spack.TelemetryData) {
		if cli.Metrics {
			logger.Info("operation finished", "telemetry", td)
		}
	}

	return spack.NewConfig(
		spack.WithContinueOnError(cli.ContinueOnError),
		spack.WithCreateDestination(cli.CreateDestination),
		spack.WithDenyPathTraversal(cli.DenyTraversal),
		spack.WithInputCompression(cli.InputCompression),
		spack.WithLogger(logger),
		spack.WithMaxExtractionSize(cli.MaxExtractionSize),
		spack.WithMaxFiles(cli.MaxFiles),
		spack.WithMaxInputSize(cli.MaxInputSize),
		spack.WithNoDecompression(cli.NoDecompression),
		spack.WithOverwrite(!cli.NoOverwrite),
		spack.WithTelemetryHook(telemetryToLog),
	)
}

// execute runs the selected mode. The listing is written to stdout, stdin is used
// as input if the pack file is "-".
func execute(ctx context.Context, cli *CLI, cfg *spack.Config, stdin io.Reader, stdout io.Writer) error {

	// pack mode writes the pack file
	if len(cli.Pack) > 0 {
		if cli.PackFile == "-" {
			bw := bufio.NewWriter(stdout)
			if err := spack.PackDir(ctx, cli.Pack, bw, cfg); err != nil {
				return errors.Wrap(err, "error during packing")
			}
			return errors.Wrap(bw.Flush(), "cannot write pack")
		}
		return errors.Wrap(spack.PackDirFile(ctx, cli.Pack, cli.PackFile, cfg), "error during packing")
	}

	// read from STDIN
	if cli.PackFile == "-" {
		src := bufio.NewReader(stdin)
		switch {
		case cli.List:
			return errors.Wrap(spack.List(ctx, src, stdout, cfg), "error during listing")
		case len(cli.File) > 0:
			return errors.Wrap(spack.ExtractOne(ctx, spack.NewTargetDisk(), src, cli.File, cli.Extract, cfg), "error during extraction")
		default:
			return errors.Wrap(spack.ExtractAll(ctx, spack.NewTargetDisk(), src, cli.Extract, cfg), "error during extraction")
		}
	}

	switch {
	case cli.List:
		return errors.Wrap(spack.ListFile(ctx, cli.PackFile, stdout, cfg), "error during listing")
	case len(cli.File) > 0:
		return errors.Wrap(spack.ExtractFile(ctx, cli.PackFile, cli.File, cli.Extract, cfg), "error during extraction")
	default:
		return errors.Wrap(spack.ExtractAllFile(ctx, cli.PackFile, cli.Extract, cfg), "error during extraction")
	}
}
