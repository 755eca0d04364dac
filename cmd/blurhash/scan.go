package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackclub/blurhash/internal/manifest"
	"github.com/hackclub/blurhash/internal/scan"
)

var (
	scanWorkers int
	scanOut     string
	scanFresh   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Hash every image under a directory and write a manifest",
	Long: `Walks <dir> for images (png, jpeg, gif, webp, bmp, tiff, heif, avif),
computes their blurhashes in parallel and writes ` + manifest.FileName + `.

Entries from an existing manifest are reused when the file content and the
blurhash settings are unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	scanCmd.Flags().StringVarP(&scanOut, "out", "o", "", "manifest path (default <dir>/"+manifest.FileName+")")
	scanCmd.Flags().BoolVar(&scanFresh, "fresh", false, "ignore the existing manifest")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	logger := newLogger()

	dir, out, err := scanPaths(args[0])
	if err != nil {
		return err
	}

	hasher, err := newHasher(cmd, logger)
	if err != nil {
		return err
	}

	m, err := scan.New(hasher, scan.Config{
		Dir:      dir,
		Workers:  scanWorkers,
		Previous: loadPrevious(out, logger),
		Logger:   logger,
	}).Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := manifest.WriteJSON(m, out); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.Info().
		Int("assets", m.Stats.TotalAssets).
		Int("with_blurhash", m.Stats.WithBlurhash).
		Int("failed", m.Stats.Failed).
		Dur("took", time.Since(start)).
		Str("manifest", out).
		Msg("scan done")
	return nil
}

// scanPaths resolves the directory and manifest path to absolute paths.
func scanPaths(arg string) (dir, out string, err error) {
	dir, err = filepath.Abs(arg)
	if err != nil {
		return "", "", fmt.Errorf("resolve input path: %w", err)
	}
	out = scanOut
	if out == "" {
		out = filepath.Join(dir, manifest.FileName)
	}
	out, err = filepath.Abs(out)
	if err != nil {
		return "", "", fmt.Errorf("resolve manifest path: %w", err)
	}
	return dir, out, nil
}

func loadPrevious(path string, logger zerolog.Logger) *manifest.Manifest {
	if scanFresh {
		return nil
	}
	prev, err := manifest.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("manifest", path).Msg("ignoring unreadable manifest")
		}
		return nil
	}
	return prev
}
