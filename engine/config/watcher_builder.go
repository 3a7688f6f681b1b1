package config

import "time"

// WatcherBuilderOption is a functional option used to configure a Watcher during construction.
type WatcherBuilderOption func(*watcher)

// WithDebounce sets how long the watcher waits after the last file event before reloading.
//
// Parameters:
//   - d: the debounce interval
//
// Returns:
//   - WatcherBuilderOption: a function that sets the debounce interval
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		w.debounce = d
	}
}

// WithReloadHandler registers a callback invoked with the merged configuration after each reload.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - WatcherBuilderOption: a function that sets the reload callback
func WithReloadHandler(fn func(Config)) WatcherBuilderOption {
	return func(w *watcher) {
		w.onReload = fn
	}
}
