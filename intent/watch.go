package intent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hupe1980/agentrelay/logging"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	Debounce time.Duration
	Logger   logging.Logger
}

// Watch reloads the phrase file at path into c whenever it changes, until
// ctx is done. The parent directory is watched so that editors replacing
// the file via rename are picked up. Bursts of events are coalesced; a file
// that fails to parse is logged and ignored, keeping the previous lists.
//
// Watch returns once the watcher is set up; reloading happens in the
// background.
func Watch(ctx context.Context, path string, c *PhraseClassifier, optFns ...func(o *WatchOptions)) error {
	opts := WatchOptions{Debounce: 200 * time.Millisecond}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve phrases path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create phrases watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)

	reload := func() {
		p, err := LoadPhrases(abs)
		if err != nil {
			logger.Warn("intent.phrases.reload_failed", "path", abs, "error", err)
			return
		}
		c.Update(p)
		logger.Info("intent.phrases.reloaded", "path", abs)
	}

	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer == nil {
			timer = time.AfterFunc(opts.Debounce, reload)
			return
		}
		timer.Reset(opts.Debounce)
	}

	go func() {
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			_ = w.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				schedule()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("intent.phrases.watch_error", "path", abs, "error", err)
			}
		}
	}()

	logger.Info("intent.phrases.watch", "path", abs)

	return nil
}
