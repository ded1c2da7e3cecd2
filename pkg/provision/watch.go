package provision

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-runs a pass whenever a catalog path changes. Passes run one at a
// time on the watching goroutine; changes during a pass trigger one more.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher watches path, a catalog file or directory.
func NewWatcher(path string, debounce time.Duration, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, logger: telemetry.Component(logger, "watch")}
}

// Run calls pass once, then again after every settled change, until ctx is
// done. Errors from pass are logged and do not stop the watch.
func (w *Watcher) Run(ctx context.Context, pass func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	match, err := w.add(watcher)
	if err != nil {
		return err
	}

	w.runPass(ctx, pass)

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !match(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Catalog changed")
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watch error")

		case <-timer.C:
			w.runPass(ctx, pass)
		}
	}
}

func (w *Watcher) runPass(ctx context.Context, pass func(context.Context) error) {
	if err := pass(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Pass failed, waiting for the next change")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("Pass complete, watching for changes")
}

// add registers the directories to watch and returns the filter for event names.
// A single file is watched through its directory so that editors replacing the
// file by rename are seen.
func (w *Watcher) add(watcher *fsnotify.Watcher) (func(string) bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", w.path, err)
	}

	if !info.IsDir() {
		target := filepath.Clean(w.path)
		if err := watcher.Add(filepath.Dir(target)); err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", w.path, err)
		}
		return func(name string) bool { return filepath.Clean(name) == target }, nil
	}

	err = filepath.WalkDir(w.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", w.path, err)
	}
	return func(string) bool { return true }, nil
}
