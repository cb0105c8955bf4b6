//go:build darwin
// +build darwin

package watching

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mutagen-io/fsevents"
)

const (
	// fseventsChannelCapacity is the capacity to use for the internal FSEvents
	// events channels.
	fseventsChannelCapacity = 50

	// fseventsCoalescingPeriod is the internal latency parameter to use with
	// the FSEvents API. This parameter defines the time window over which
	// multiple events will be coalesced before being delivered from the API
	// in a batch.
	fseventsCoalescingPeriod = 10 * time.Millisecond

	// fseventsFlags are the flags to use for FSEvents watches. The inclusion
	// of the NoDefer (kFSEventStreamCreateFlagNoDefer) flag means that
	// one-shot events that occur outside of a coalescing window will be
	// delivered immediately and then subsequent events will be coalesced.
	fseventsFlags = fsevents.NoDefer | fsevents.WatchRoot | fsevents.FileEvents
)

// fseventsWatch tracks a single FSEvents stream and its forwarding Goroutine.
type fseventsWatch struct {
	// stream is the underlying event stream.
	stream *fsevents.EventStream
	// cancel terminates event forwarding from the stream.
	cancel context.CancelFunc
}

// fseventsWatcher implements Watcher using the FSEvents API, which provides
// native recursive watching. Each watched path is backed by its own event
// stream, with all streams forwarding onto a shared event channel.
type fseventsWatcher struct {
	// mutex protects watches.
	mutex sync.Mutex
	// watches maps watched paths to their streams.
	watches map[string]*fseventsWatch
	// events is the event delivery channel.
	events chan Event
	// errors is the error delivery channel.
	errors chan error
	// terminated indicates that the watcher has been terminated.
	terminated bool
}

// newNativeWatcher creates a new FSEvents-based watcher.
func newNativeWatcher(bufferSize int) (Watcher, error) {
	return &fseventsWatcher{
		watches: make(map[string]*fseventsWatch),
		events:  make(chan Event, bufferSize),
		errors:  make(chan error, 1),
	}, nil
}

// Watch implements Watcher.Watch. FSEvents streams are inherently recursive,
// so non-recursive watches receive subtree coverage as well; consumers filter
// by path in any case.
func (w *fseventsWatcher) Watch(path string, _ Mode) error {
	// Verify that the target exists. The FSEvents API itself accepts watch
	// targets that don't exist, which would mask registration errors that
	// need to be surfaced.
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, "unable to probe watch target")
	}

	// Lock the watch state.
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.terminated {
		return ErrWatchTerminated
	}

	// Watching an already-watched path is a no-op.
	if _, ok := w.watches[path]; ok {
		return nil
	}

	// Create and start the event stream.
	rawEvents := make(chan []fsevents.Event, fseventsChannelCapacity)
	stream := &fsevents.EventStream{
		Events:  rawEvents,
		Paths:   []string{path},
		Latency: fseventsCoalescingPeriod,
		Flags:   fseventsFlags,
	}

	// Start a cancellable Goroutine to extract and forward events.
	forwardingContext, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-forwardingContext.Done():
				return
			case batch, ok := <-rawEvents:
				if !ok {
					return
				}
				for _, e := range batch {
					select {
					case w.events <- Event{Path: e.Path, Op: fmt.Sprintf("%#x", uint32(e.Flags))}:
					default:
					}
				}
			}
		}
	}()

	// Start watching.
	stream.Start()

	// Record the watch.
	w.watches[path] = &fseventsWatch{stream: stream, cancel: cancel}

	// Success.
	return nil
}

// Unwatch implements Watcher.Unwatch.
func (w *fseventsWatcher) Unwatch(path string) error {
	// Lock the watch state.
	w.mutex.Lock()
	defer w.mutex.Unlock()

	// Unwatching an unknown path is a no-op.
	watch, ok := w.watches[path]
	if !ok {
		return nil
	}

	// Stop the stream and its forwarder.
	watch.stream.Stop()
	watch.cancel()
	delete(w.watches, path)

	// Success.
	return nil
}

// Events implements Watcher.Events.
func (w *fseventsWatcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *fseventsWatcher) Errors() <-chan error {
	return w.errors
}

// Terminate implements Watcher.Terminate.
func (w *fseventsWatcher) Terminate() error {
	// Lock the watch state.
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.terminated {
		return nil
	}
	w.terminated = true

	// Stop all streams.
	for path, watch := range w.watches {
		watch.stream.Stop()
		watch.cancel()
		delete(w.watches, path)
	}

	// Populate the error channel.
	select {
	case w.errors <- ErrWatchTerminated:
	default:
	}

	// Success.
	return nil
}
