package template

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/onyx-go/dispatch/internal/logging"
)

// HotReloader watches a directory tree and reports changes, coalescing
// bursts of events into one callback
type HotReloader struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)
	logger   logging.Logger
	done     chan struct{}
	once     sync.Once
}

// NewHotReloader watches root and every directory below it
func NewHotReloader(root string, debounce time.Duration, onChange func(path string), logger logging.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	hr := &HotReloader{
		watcher:  watcher,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if err := hr.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return hr, nil
}

func (hr *HotReloader) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return hr.watcher.Add(p)
		}
		return nil
	})
}

// Run delivers changes until ctx is done or Stop is called
func (hr *HotReloader) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	pending := ""

	for {
		select {
		case <-ctx.Done():
			hr.Stop()
			return
		case <-hr.done:
			return
		case event, ok := <-hr.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if err := hr.addTree(event.Name); err != nil {
					hr.logger.Debug("Cannot watch new path", map[string]interface{}{"path": event.Name, "error": err.Error()})
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = event.Name
			if timer == nil {
				timer = time.NewTimer(hr.debounce)
			} else {
				timer.Reset(hr.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			hr.onChange(pending)
		case err, ok := <-hr.watcher.Errors:
			if !ok {
				return
			}
			hr.logger.Error("View watcher failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Stop ends watching
func (hr *HotReloader) Stop() error {
	var err error
	hr.once.Do(func() {
		close(hr.done)
		err = hr.watcher.Close()
	})
	return err
}
