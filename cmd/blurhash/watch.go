package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackclub/blurhash/internal/manifest"
	"github.com/hackclub/blurhash/internal/scan"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep the manifest of a directory up to date",
	Long: `Runs a full scan, then watches <dir> and recomputes blurhashes for
images that are created, written, renamed or removed. Bursts of events are
coalesced for --debounce before the manifest is rewritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before rewriting the manifest")
	watchCmd.Flags().StringVarP(&scanOut, "out", "o", "", "manifest path (default <dir>/"+manifest.FileName+")")
	watchCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0, "parallel workers for the initial scan (0 = NumCPU)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	dir, out, err := scanPaths(args[0])
	if err != nil {
		return err
	}

	hasher, err := newHasher(cmd, logger)
	if err != nil {
		return err
	}

	scanner := scan.New(hasher, scan.Config{
		Dir:      dir,
		Workers:  scanWorkers,
		Previous: loadPrevious(out, logger),
		Logger:   logger,
	})

	m, err := scanner.Run(ctx)
	if err != nil {
		// an empty directory is fine to watch
		logger.Warn().Err(err).Msg("initial scan incomplete")
		m = manifest.New(hasher.Settings())
	}
	if err := manifest.WriteJSON(m, out); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, dir); err != nil {
		return err
	}
	logger.Info().Str("dir", dir).Str("manifest", out).Msg("watching")

	pending := make(map[string]struct{})
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name == out || strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Has(fsnotify.Create) {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
					}
					continue
				}
			}
			if !scan.IsImagePath(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = struct{}{}
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("watcher error")

		case <-timer.C:
			flush(scanner, m, pending, out, logger)
			pending = make(map[string]struct{})
		}
	}
}

func flush(scanner *scan.Scanner, m *manifest.Manifest, pending map[string]struct{}, out string, logger zerolog.Logger) {
	for path := range pending {
		if err := scanner.Update(m, path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to update image")
			continue
		}
		logger.Debug().Str("path", path).Msg("updated")
	}
	m.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	if err := manifest.WriteJSON(m, out); err != nil {
		logger.Error().Err(err).Msg("failed to write manifest")
		return
	}
	logger.Info().Int("changed", len(pending)).Int("assets", len(m.Assets)).Msg("manifest updated")
}

// addTree watches root and every non-hidden directory below it.
func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", path, err)
		}
		return nil
	})
}
