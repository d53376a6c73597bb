package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle. Many
// editors produce several events for a single save.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives a plan that changed on disk, or the error that
// prevented loading it.
type ReloadFunc func(path string, p *Plan, err error)

// Watch reloads the plans at paths whenever they are written and passes
// each result to fn. It blocks until ctx is done.
//
// The parent directories are watched rather than the files, so plans that
// are replaced by rename (as Save does) keep being observed.
func Watch(ctx context.Context, paths []string, debounce time.Duration, fn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := make(map[string]bool, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		watched[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(0)
	<-timer.C // drain initial timer

	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !watched[name] {
				continue
			}
			pending[name] = true
			timer.Reset(debounce)

		case <-timer.C:
			for path := range pending {
				p, err := Load(path)
				fn(path, p, err)
			}
			clear(pending)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fn("", nil, fmt.Errorf("watch: %w", err))
		}
	}
}
