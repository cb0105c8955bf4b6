//go:build !darwin
// +build !darwin

package watching

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/pathwatch-io/pathwatch/pkg/filesystem"
)

// fsnotifyWatcher implements Watcher on top of fsnotify. The underlying
// facilities (inotify, kqueue, ReadDirectoryChangesW in its per-directory
// form) are non-recursive, so recursive watches are realized by walking the
// subtree at registration time and extending coverage as directories are
// created beneath a recursive root.
type fsnotifyWatcher struct {
	// watcher is the underlying fsnotify watcher.
	watcher *fsnotify.Watcher
	// mutex protects roots and watches, which are accessed by both the run
	// loop and watch modification calls.
	mutex sync.Mutex
	// roots maps watched root paths to their watch modes.
	roots map[string]Mode
	// watches maps individual watched directories to the root path on whose
	// behalf they were registered.
	watches map[string]string
	// events is the event delivery channel.
	events chan Event
	// errors is the error delivery channel.
	errors chan error
	// cancel is the run loop cancellation function.
	cancel context.CancelFunc
	// done is the run loop completion signaling mechanism.
	done sync.WaitGroup
}

// newNativeWatcher creates a new fsnotify-based watcher.
func newNativeWatcher(bufferSize int) (Watcher, error) {
	// Create the underlying watcher.
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create fsnotify watcher")
	}

	// Create a context to regulate the watcher's run loop.
	ctx, cancel := context.WithCancel(context.Background())

	// Create the watcher.
	watcher := &fsnotifyWatcher{
		watcher: inner,
		roots:   make(map[string]Mode),
		watches: make(map[string]string),
		events:  make(chan Event, bufferSize),
		errors:  make(chan error, 1),
		cancel:  cancel,
	}

	// Track run loop termination.
	watcher.done.Add(1)

	// Start the run loop.
	go watcher.run(ctx)

	// Success.
	return watcher, nil
}

// run implements the event processing run loop for fsnotifyWatcher.
func (w *fsnotifyWatcher) run(ctx context.Context) {
	defer w.done.Done()
	for {
		select {
		case <-ctx.Done():
			select {
			case w.errors <- ErrWatchTerminated:
			default:
			}
			return
		case e, ok := <-w.watcher.Events:
			if !ok {
				select {
				case w.errors <- errors.New("event stream closed"):
				default:
				}
				return
			}

			// If a directory has appeared beneath a recursive root, then
			// extend watch coverage to it before forwarding the event, so
			// that events inside the new directory aren't missed.
			if e.Op&fsnotify.Create != 0 {
				w.extendCoverage(e.Name)
			}

			// Forward the event, dropping it if the consumer has fallen too
			// far behind. The consumer coarsens events to subtree level, so a
			// dropped event is almost always subsumed by its siblings.
			select {
			case w.events <- Event{Path: e.Name, Op: e.Op.String()}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				select {
				case w.errors <- errors.New("error stream closed"):
				default:
				}
				return
			}
			select {
			case w.errors <- errors.Wrap(err, "watch error"):
			default:
			}
			return
		}
	}
}

// extendCoverage registers watches on a newly created directory (and any
// directories beneath it) if it lies beneath a recursive root.
func (w *fsnotifyWatcher) extendCoverage(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	// Check whether the path falls under any recursive root.
	covered := false
	for root, mode := range w.roots {
		if mode == ModeRecursive && filesystem.ContainsPath(root, path) {
			covered = true
			break
		}
	}
	if !covered {
		return
	}

	// Only directories need additional watches.
	if info, err := os.Lstat(path); err != nil || !info.IsDir() {
		return
	}

	// Register the directory and any directories already created beneath it.
	// Races with ongoing creation and removal are expected here, so failures
	// are tolerated; any missed directory will surface again on its next
	// event.
	w.walkAndAdd(path)
}

// walkAndAdd walks the directory subtree rooted at path and registers a watch
// on every directory it contains. The watcher's mutex must be held.
func (w *fsnotifyWatcher) walkAndAdd(path string) {
	filepath.Walk(path, func(name string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if _, ok := w.watches[name]; ok {
			return nil
		}
		if err := w.watcher.Add(name); err == nil {
			w.watches[name] = w.owningRoot(name)
		}
		return nil
	})
}

// owningRoot returns the watched root that covers the specified path,
// preferring an exact match. The watcher's mutex must be held.
func (w *fsnotifyWatcher) owningRoot(path string) string {
	if _, ok := w.roots[path]; ok {
		return path
	}
	for root := range w.roots {
		if filesystem.ContainsPath(root, path) {
			return root
		}
	}
	return path
}

// Watch implements Watcher.Watch.
func (w *fsnotifyWatcher) Watch(path string, mode Mode) error {
	// Verify that the target exists before making any state changes.
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "unable to probe watch target")
	}

	// Lock the watch state.
	w.mutex.Lock()
	defer w.mutex.Unlock()

	// Watching an already-watched root is a no-op.
	if _, ok := w.roots[path]; ok {
		return nil
	}

	// Record the root.
	w.roots[path] = mode

	// For non-recursive watches (or non-directory targets), a single watch
	// suffices.
	if mode == ModeNonRecursive || !info.IsDir() {
		if err := w.watcher.Add(path); err != nil {
			delete(w.roots, path)
			return errors.Wrap(err, "unable to establish watch")
		}
		w.watches[path] = path
		return nil
	}

	// For recursive watches, the root itself must be watchable; descendants
	// are registered tolerantly since their contents may be churning.
	if err := w.watcher.Add(path); err != nil {
		delete(w.roots, path)
		return errors.Wrap(err, "unable to establish watch")
	}
	w.watches[path] = path
	filepath.Walk(path, func(name string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() || name == path {
			return nil
		}
		if _, ok := w.watches[name]; ok {
			return nil
		}
		if err := w.watcher.Add(name); err == nil {
			w.watches[name] = path
		}
		return nil
	})

	// Success.
	return nil
}

// Unwatch implements Watcher.Unwatch.
func (w *fsnotifyWatcher) Unwatch(path string) error {
	// Lock the watch state.
	w.mutex.Lock()
	defer w.mutex.Unlock()

	// Unwatching an unknown root is a no-op.
	if _, ok := w.roots[path]; !ok {
		return nil
	}
	delete(w.roots, path)

	// Release or reassign the directories registered on behalf of this root.
	// A directory that still lies beneath some other watched root is handed
	// over to that root rather than released, so overlapping registrations
	// don't interfere with each other.
	for name, owner := range w.watches {
		if owner != path {
			continue
		}
		if root := w.coveringRoot(name); root != "" {
			w.watches[name] = root
			continue
		}
		// Removal failures are expected when the directory has already been
		// deleted out from under the watch.
		w.watcher.Remove(name)
		delete(w.watches, name)
	}

	// Success.
	return nil
}

// coveringRoot returns a remaining root that covers the specified path, or an
// empty string if there is none. The watcher's mutex must be held.
func (w *fsnotifyWatcher) coveringRoot(path string) string {
	for root, mode := range w.roots {
		if root == path {
			return root
		}
		if mode == ModeRecursive && filesystem.ContainsPath(root, path) {
			return root
		}
	}
	return ""
}

// Events implements Watcher.Events.
func (w *fsnotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *fsnotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Terminate implements Watcher.Terminate.
func (w *fsnotifyWatcher) Terminate() error {
	// Signal the run loop and wait for it to exit.
	w.cancel()
	w.done.Wait()

	// Close the underlying watcher.
	return w.watcher.Close()
}
