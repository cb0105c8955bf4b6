package monitor

import (
	"io"

	"github.com/pkg/errors"
)

const (
	// eventQueueSize is the capacity of the dispatcher's merged event queue.
	// It only needs to absorb short bursts; producers block beyond that, and
	// a watcher backend whose own event channel fills drops further events.
	eventQueueSize = 64
)

// Run drives the monitor until end of input. It spawns one producer that
// reads request lines and one that forwards raw filesystem events, then
// consumes the merged stream serially, so that monitor state is only ever
// mutated from this Goroutine. It returns nil on clean end-of-input and an
// error for any fatal condition. The producers are left running; the process
// is expected to exit once Run returns.
func (m *Monitor) Run() error {
	// Create the merged event queue and a channel for terminal conditions.
	events := make(chan Event, eventQueueSize)
	terminations := make(chan error, 2)

	// Start the input reader.
	go func() {
		for {
			line, err := m.transport.ReadLine()
			if err != nil {
				terminations <- err
				return
			}
			events <- Event{Source: SourceInput, Line: line}
		}
	}()

	// Start the filesystem event forwarder.
	go func() {
		for {
			select {
			case event, ok := <-m.watcher.Events():
				if !ok {
					terminations <- errors.New("watch event stream closed")
					return
				}
				m.logger.Debugf("Filesystem event at %s (%s)", event.Path, event.Op)
				events <- Event{Source: SourceFilesystem, Path: event.Path}
			case err := <-m.watcher.Errors():
				terminations <- errors.Wrap(err, "filesystem watch failure")
				return
			}
		}
	}()

	// Consume events until a terminal condition arises. Events that were
	// already queued when the terminal condition arrived are dispatched
	// first, so that requests received before end-of-input aren't dropped.
	for {
		select {
		case event := <-events:
			if err := m.Dispatch(event); err != nil {
				return err
			}
		case err := <-terminations:
			for {
				select {
				case event := <-events:
					if dispatchErr := m.Dispatch(event); dispatchErr != nil {
						return dispatchErr
					}
				default:
					if err == io.EOF {
						return nil
					}
					return err
				}
			}
		}
	}
}
