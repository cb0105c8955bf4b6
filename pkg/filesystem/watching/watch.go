package watching

import (
	"errors"
)

const (
	// DefaultEventBufferSize is the default capacity used for watcher event
	// channels when no capacity is specified by configuration.
	DefaultEventBufferSize = 1024
)

// ErrWatchTerminated indicates that a watcher has been terminated.
var ErrWatchTerminated = errors.New("watch terminated")

// Mode specifies the recursion behavior of a watch.
type Mode uint8

const (
	// ModeRecursive indicates that a watch should cover the entire subtree
	// rooted at the watched path.
	ModeRecursive Mode = iota
	// ModeNonRecursive indicates that a watch should cover only the watched
	// path itself.
	ModeNonRecursive
)

// String provides a human-readable representation of a watch mode.
func (m Mode) String() string {
	switch m {
	case ModeRecursive:
		return "recursive"
	case ModeNonRecursive:
		return "non-recursive"
	default:
		return "unknown"
	}
}

// Event represents a single raw filesystem event. Path may be empty if the
// underlying backend was unable to associate the event with a path, in which
// case consumers should ignore the event. Op is an opaque description of the
// operation, provided for logging purposes only.
type Event struct {
	// Path is the absolute path associated with the event, if any.
	Path string
	// Op is an opaque description of the operation that generated the event.
	Op string
}

// Watcher is the interface implemented by filesystem watching backends. Watch
// and Unwatch are not safe for concurrent invocation, but the channels
// returned by Events and Errors may (and should) be polled while watch
// modifications are being made.
type Watcher interface {
	// Watch begins watching the specified path. The path must exist at the
	// time of the call. Watching an already-watched path is a no-op.
	Watch(path string, mode Mode) error
	// Unwatch stops watching the specified path. Unwatching a path that isn't
	// watched is a no-op.
	Unwatch(path string) error
	// Events returns the channel on which raw events are delivered.
	Events() <-chan Event
	// Errors returns a channel that is populated if a watch error occurs. If
	// an error occurs, then the watcher should be terminated. If Terminate is
	// invoked before any other error occurs, then it will be populated by
	// ErrWatchTerminated.
	Errors() <-chan error
	// Terminate terminates all watching operations and releases any resources
	// associated with the watcher.
	Terminate() error
}

// NewWatcher creates a new watcher using the platform's backend: FSEvents
// (natively recursive) on Darwin, and fsnotify (with recursion realized by
// walking the subtree) elsewhere. The provided buffer size regulates the capacity of the
// event channel; if it is zero or negative, DefaultEventBufferSize is used.
func NewWatcher(bufferSize int) (Watcher, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}
	return newNativeWatcher(bufferSize)
}
