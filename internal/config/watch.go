package config

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the configuration whenever one of cfg's files changes and
// passes every successfully loaded result to apply. A failed reload is logged
// and the previous configuration stays in effect. It blocks until ctx is done.
func Watch(ctx context.Context, path string, cfg *Config, apply func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	files := []string{filepath.Clean(path)}
	if len(cfg.Files) > 0 {
		files = cleanPaths(cfg.Files)
	}
	if err := watchDirs(w, files); err != nil {
		return err
	}

	// Editors emit bursts of events for one save.
	const settle = 250 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("component", "config").Msg("watch error")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !slices.Contains(files, filepath.Clean(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(settle)
			}
		case <-timer.C:
			next, err := LoadMerged(path)
			if err != nil {
				log.Error().Err(err).Str("component", "config").Msg("reload failed, keeping current config")
				continue
			}
			for _, warning := range next.Warnings {
				log.Warn().Str("component", "config").Msg(warning)
			}
			if nextFiles := cleanPaths(next.Files); !slices.Equal(nextFiles, files) {
				files = nextFiles
				if err := watchDirs(w, files); err != nil {
					log.Error().Err(err).Str("component", "config").Msg("watch included files")
				}
			}
			log.Info().Str("component", "config").Int("commands", len(next.Commands)).Int("matches", len(next.Matches)).Msg("config reloaded")
			apply(next)
		}
	}
}

// watchDirs watches the directories holding files so that atomic replaces
// are seen.
func watchDirs(w *fsnotify.Watcher, files []string) error {
	for _, f := range files {
		if err := w.Add(filepath.Dir(f)); err != nil {
			return err
		}
	}
	return nil
}

func cleanPaths(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Clean(f)
	}
	return out
}
