package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CSVWatcher triggers a callback when the advisory CSV is written or replaced.
type CSVWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
}

func NewCSVWatcher(path string) (*CSVWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}

	return &CSVWatcher{
		watcher:  w,
		path:     abs,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Watch monitors the CSV's directory until ctx is done. Bursts of events
// within the debounce window produce a single onChange call.
func (w *CSVWatcher) Watch(ctx context.Context, onChange func(context.Context)) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	log.Printf("Watching %s for changes", w.path)

	go func() {
		var timer *time.Timer
		fire := make(chan struct{}, 1)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.matches(event) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				log.Printf("Detected change in %s", w.path)
				onChange(ctx)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Watcher error: %v", err)
			}
		}
	}()

	return nil
}

func (w *CSVWatcher) matches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

func (w *CSVWatcher) Stop() error {
	return w.watcher.Close()
}
