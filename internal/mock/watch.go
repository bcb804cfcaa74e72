package mock

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/wingman-run/wingman/internal/engine"
)

// ReloadFunc re-parses the given file paths into fresh features and hands
// them to a Dispatcher (normally FeatureLoader.LoadAll followed by
// Dispatcher.Reload), grounded on the fsnotify.Watcher usage in
// llm/tool/ast_read.go's WatchDir callback (spec.md §4.7 step 5: "Watch
// mode: when enabled, the mock feature file is re-parsed on modification").
type ReloadFunc func(paths []string) error

// Watcher re-parses mock feature files on modification and calls reload.
type Watcher struct {
	watcher *fsnotify.Watcher
	paths   []string
	reload  ReloadFunc
	done    chan struct{}
}

// NewWatcher watches each of paths for writes/creates/renames and invokes
// reload(paths) whenever one changes.
func NewWatcher(paths []string, reload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := fw.Add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return &Watcher{watcher: fw, paths: paths, reload: reload, done: make(chan struct{})}, nil
}

// Run blocks, dispatching reloads until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.reload(w.paths); err != nil {
				log.Error().Err(err).Str("file", ev.Name).Msg("mock feature reload failed")
			} else {
				log.Info().Str("file", ev.Name).Msg("mock feature reloaded")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("mock feature watch error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// LoaderReload builds a ReloadFunc that re-parses paths via loader and feeds
// the resulting features to disp.Reload, skipping (but logging) any file
// that fails to parse so one bad edit doesn't take down the whole mock.
func LoaderReload(loader *engine.FeatureLoader, disp *Dispatcher) ReloadFunc {
	return func(paths []string) error {
		features, errs := loader.LoadAll(paths)
		for _, e := range errs {
			log.Error().Err(e).Msg("mock feature parse error during reload")
		}
		if len(features) == 0 {
			return nil
		}
		return disp.Reload(features)
	}
}
