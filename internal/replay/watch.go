package replay

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a trace file must go without writes before it
// is replayed in watch mode.
const DefaultSettle = 500 * time.Millisecond

// Watch replays the traces already in dir, then every .csv file created or
// rewritten in dir until ctx is cancelled. A file is replayed once writes to
// it have been quiet for settle. Cancellation is the normal way out and is
// not reported as an error.
func (r *Replayer) Watch(ctx context.Context, dir string, settle time.Duration) (*Stats, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &r.stats, fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return &r.stats, fmt.Errorf("watching %s: %w", dir, err)
	}
	return r.watch(ctx, dir, settle, watcher.Events, watcher.Errors)
}

func (r *Replayer) watch(ctx context.Context, dir string, settle time.Duration, events <-chan fsnotify.Event, errs <-chan error) (*Stats, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}

	if _, err := r.Run(ctx, []string{dir}); err != nil {
		if ctx.Err() != nil {
			return &r.stats, nil
		}
		return &r.stats, err
	}
	r.log.Info("watching for traces", "dir", dir)

	// done releases settle timers that fired but were never received.
	ready := make(chan string)
	done := make(chan struct{})
	pending := make(map[string]*time.Timer)
	defer func() {
		close(done)
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return &r.stats, nil

		case event, ok := <-events:
			if !ok {
				return &r.stats, nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := event.Name
			if t, ok := pending[path]; ok {
				t.Reset(settle)
				continue
			}
			pending[path] = r.afterFunc(settle, func() {
				select {
				case ready <- path:
				case <-done:
				}
			})

		case path := <-ready:
			delete(pending, path)
			r.stats.FilesTotal++
			if err := r.replayFile(ctx, path); err != nil {
				if ctx.Err() != nil {
					return &r.stats, nil
				}
				r.stats.FilesErrored++
				r.log.Error("replaying trace", "path", path, "error", err)
			}

		case err, ok := <-errs:
			if !ok {
				return &r.stats, nil
			}
			r.log.Warn("watcher error", "error", err)
		}
	}
}
