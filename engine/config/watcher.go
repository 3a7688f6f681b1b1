package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	path  string
	store *Store
	fs    *fsnotify.Watcher

	debounce time.Duration
	onReload func(Config)

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// Watcher reloads the settings file when it changes on disk and publishes the persisted
// settings into a Store. Session state (filter channels, cloud rotation, window rectangle)
// is left untouched by a reload.
type Watcher interface {
	// Path returns the watched settings file.
	//
	// Returns:
	//   - string: the settings file path
	Path() string

	// Close stops watching and waits for the reload goroutine to exit. It is safe to call more than once.
	//
	// Returns:
	//   - error: an error from closing the underlying file watcher
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher starts watching the directory that holds path. Watching the directory rather than
// the file keeps the watch alive across editors that replace the file on save.
//
// Parameters:
//   - path: the settings file to watch
//   - store: the store receiving reloaded settings
//   - opts: variadic WatcherBuilderOption functions
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the file system watch could not be set up
func NewWatcher(path string, store *Store, opts ...WatcherBuilderOption) (Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}

	w := &watcher{
		path:     abs,
		store:    store,
		fs:       fsw,
		debounce: 100 * time.Millisecond,
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) Path() string {
	return w.path
}

func (w *watcher) Close() error {
	var err error
	w.quitOnce.Do(func() {
		close(w.quit)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

// run coalesces bursts of events into one reload after the debounce interval.
func (w *watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.quit:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("[Config] watcher error: %v", err)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *watcher) reload() {
	loaded, err := Load(w.path)
	if err != nil {
		log.Printf("[Config] reload skipped: %v", err)
		return
	}

	var applied Config
	w.store.Update(func(c *Config) {
		c.EnableFilter = loaded.EnableFilter
		c.FilterMode = loaded.FilterMode
		c.EnableHistogram = loaded.EnableHistogram
		c.HistogramMode = loaded.HistogramMode
		c.HistogramScale = loaded.HistogramScale
		c.EnableColorCloud = loaded.EnableColorCloud
		c.ColorCloudMode = loaded.ColorCloudMode
		c.ShowGrid = loaded.ShowGrid
		c.BgOpacity = loaded.BgOpacity
		applied = *c
	})
	log.Printf("[Config] reloaded %s", w.path)

	if w.onReload != nil {
		w.onReload(applied)
	}
}
