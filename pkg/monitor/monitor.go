package monitor

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/pathwatch-io/pathwatch/pkg/filesystem"
	"github.com/pathwatch-io/pathwatch/pkg/filesystem/watching"
	"github.com/pathwatch-io/pathwatch/pkg/logging"
	"github.com/pathwatch-io/pathwatch/pkg/pathwatch"
	"github.com/pathwatch-io/pathwatch/pkg/protocol"
)

// Monitor is the filesystem-change monitor's state machine. It owns the
// replica registry, the link map, and the current subtree, and it drives the
// watcher and the transport in response to dispatched events. All methods
// must be invoked from a single Goroutine; Run arranges for this.
type Monitor struct {
	// logger is the monitor's logger.
	logger *logging.Logger
	// transport carries the protocol conversation with the parent.
	transport *protocol.Transport
	// watcher is the filesystem watching backend.
	watcher watching.Watcher
	// strictWait controls whether a WAIT naming an unknown replica is fatal.
	strictWait bool
	// currentPath is the effective path of the most recent START request,
	// against which LINK arguments are resolved.
	currentPath string
	// replicas is the replica registry.
	replicas map[string]*replica
	// links is the link map.
	links linkMap
}

// New creates a monitor over the specified transport and watcher and opens
// the conversation by announcing the protocol version.
func New(transport *protocol.Transport, watcher watching.Watcher, strictWait bool, logger *logging.Logger) (*Monitor, error) {
	// Announce the protocol version. This must precede consumption of any
	// input, because the parent won't speak until it has seen the
	// announcement.
	if err := transport.SendVersion(pathwatch.ProtocolVersion); err != nil {
		return nil, errors.Wrap(err, "unable to announce protocol version")
	}

	// Create the monitor.
	return &Monitor{
		logger:     logger,
		transport:  transport,
		watcher:    watcher,
		strictWait: strictWait,
		replicas:   make(map[string]*replica),
		links:      make(linkMap),
	}, nil
}

// containsPath indicates whether or not any replica's watched paths cover the
// specified path.
func (m *Monitor) containsPath(path string) bool {
	for _, replica := range m.replicas {
		if replica.containsPath(path) {
			return true
		}
	}
	return false
}

// fatal transmits an ERROR response (on a best-effort basis) and returns a
// terminal error that will unwind the serve loop.
func (m *Monitor) fatal(message string) error {
	if err := m.transport.SendError(message); err != nil {
		m.logger.Warnf("Unable to transmit error response: %v", err)
	}
	return errors.New(message)
}

// fatalf is the formatting variant of fatal.
func (m *Monitor) fatalf(format string, v ...interface{}) error {
	return m.fatal(fmt.Sprintf(format, v...))
}

// Dispatch processes a single event, mutating monitor state and emitting any
// responses. A non-nil return value indicates an unrecoverable condition that
// must terminate the monitor.
func (m *Monitor) Dispatch(event Event) error {
	switch event.Source {
	case SourceInput:
		return m.dispatchInput(event.Line)
	case SourceFilesystem:
		return m.dispatchFilesystem(event.Path)
	default:
		return errors.Errorf("unknown event source: %v", event.Source)
	}
}

// dispatchInput executes a single request line.
func (m *Monitor) dispatchInput(line string) error {
	// Decode the request.
	message := protocol.DecodeMessage(line)

	// Execute the requested verb.
	switch message.Verb {
	case protocol.VerbVersion:
		return m.handleVersion(message.Arguments)
	case protocol.VerbDebug:
		return nil
	case protocol.VerbStart:
		return m.handleStart(message.Arguments)
	case protocol.VerbDir:
		return m.transport.SendOK()
	case protocol.VerbLink:
		return m.handleLink(message.Arguments)
	case protocol.VerbWait:
		return m.handleWait(message.Arguments)
	case protocol.VerbChanges:
		return m.handleChanges(message.Arguments)
	case protocol.VerbReset:
		return m.handleReset(message.Arguments)
	case protocol.VerbDone:
		return nil
	default:
		return m.fatalf("Unexpected cmd: %s", message.Verb)
	}
}

// handleVersion verifies the parent's protocol version.
func (m *Monitor) handleVersion(arguments []string) error {
	if len(arguments) != 1 {
		return m.fatal("Invalid version specification")
	}
	if arguments[0] != pathwatch.ProtocolVersion {
		return m.fatalf("Unexpected version: %s", arguments[0])
	}
	return nil
}

// handleStart registers a replica or extends an existing one. The replica's
// effective path (its root, joined with the optional subdirectory) becomes
// the current subtree and, if not already covered by the replica's watched
// paths, is added to them and registered with the watcher.
func (m *Monitor) handleStart(arguments []string) error {
	// Validate arguments.
	if len(arguments) < 2 || len(arguments) > 3 {
		return m.fatal("Invalid replica specification")
	}
	id, root := arguments[0], arguments[1]

	// Compute the effective path and update the current subtree.
	m.currentPath = root
	if len(arguments) == 3 {
		m.currentPath = filesystem.JoinRelative(root, arguments[2])
	}

	// Ensure that the replica exists. A repeated START adds to the existing
	// replica rather than replacing it.
	state, ok := m.replicas[id]
	if !ok {
		state = newReplica(root)
		m.replicas[id] = state
	}

	// Establish the watch if the replica doesn't already cover the path.
	if !state.containsPath(m.currentPath) {
		if err := m.watcher.Watch(m.currentPath, watching.ModeRecursive); err != nil {
			return m.fatalf("Unable to watch %s: %v", m.currentPath, err)
		}
		state.watchedPaths[m.currentPath] = true
	}

	// Acknowledge.
	m.logger.Debugf("Replica %s watching %d path(s)", id, len(state.watchedPaths))
	return m.transport.SendOK()
}

// handleLink resolves a symbolic link relative to the current subtree,
// watches its canonical target, and records the aliasing so that events
// beneath the target are also reported under the link.
func (m *Monitor) handleLink(arguments []string) error {
	// Validate arguments.
	if len(arguments) != 1 {
		return m.fatal("Invalid link specification")
	}

	// Resolve the link.
	path := filesystem.JoinRelative(m.currentPath, arguments[0])
	target, err := filesystem.Canonicalize(path)
	if err != nil {
		return m.fatalf("Unable to resolve link %s: %v", path, err)
	}

	// Watch the canonical target.
	if err := m.watcher.Watch(target, watching.ModeRecursive); err != nil {
		return m.fatalf("Unable to watch %s: %v", target, err)
	}

	// Record the aliasing and acknowledge.
	m.links.add(target, path)
	m.logger.Debugf("Link map has %d target(s)", len(m.links))
	return m.transport.SendOK()
}

// handleWait verifies that the named replica exists. A successful WAIT has no
// response; the parent simply begins waiting for CHANGES notifications.
func (m *Monitor) handleWait(arguments []string) error {
	if len(arguments) != 1 {
		return m.fatal("Invalid replica specification")
	}
	if _, ok := m.replicas[arguments[0]]; !ok {
		message := "Unknown replica: " + arguments[0]
		if m.strictWait {
			return m.fatal(message)
		}
		m.logger.Warnf("%s (continuing)", message)
		if err := m.transport.SendError(message); err != nil {
			return errors.Wrap(err, "unable to transmit error response")
		}
	}
	return nil
}

// handleChanges drains the named replica's pending changes, reporting each as
// a changed subtree and terminating the reply.
func (m *Monitor) handleChanges(arguments []string) error {
	// Validate arguments and look up the replica.
	if len(arguments) != 1 {
		return m.fatal("Invalid replica specification")
	}
	state, ok := m.replicas[arguments[0]]
	if !ok {
		return m.fatal("Unknown replica: " + arguments[0])
	}

	// Drain the pending set in deterministic order.
	pending := make([]string, 0, len(state.pendingChanges))
	for path := range state.pendingChanges {
		pending = append(pending, path)
	}
	sort.Strings(pending)
	state.pendingChanges = make(map[string]bool)

	// Report.
	for _, path := range pending {
		if err := m.transport.SendRecursive(path); err != nil {
			return errors.Wrap(err, "unable to transmit change")
		}
	}
	return m.transport.SendDone()
}

// handleReset unregisters a replica and releases any watched paths that no
// remaining replica covers. Resetting an unknown replica is a no-op, and a
// RESET has no response.
func (m *Monitor) handleReset(arguments []string) error {
	if len(arguments) != 1 {
		return m.fatal("Invalid replica specification")
	}
	state, ok := m.replicas[arguments[0]]
	if !ok {
		return nil
	}
	delete(m.replicas, arguments[0])
	for path := range state.watchedPaths {
		if m.containsPath(path) {
			continue
		}
		if err := m.watcher.Unwatch(path); err != nil {
			return m.fatalf("Unable to unwatch %s: %v", path, err)
		}
	}
	m.logger.Debugf("Replica %s removed, %d remaining", arguments[0], len(m.replicas))
	return nil
}

// dispatchFilesystem attributes a single raw filesystem event to replicas,
// accumulating pending changes and notifying the parent once per matched
// replica. Events without a path are ignored.
func (m *Monitor) dispatchFilesystem(path string) error {
	if path == "" {
		return nil
	}

	// Materialize the event under every aliasing path.
	candidates := m.links.expand(path)

	// Attribute the event. Relativization is performed against each
	// replica's root, so overlapping replicas each see the change in their
	// own frame of reference.
	var matched []string
	for id, state := range m.replicas {
		matchedThis := false
		for _, candidate := range candidates {
			if relative, ok := filesystem.TrimPathPrefix(candidate, state.root); ok {
				state.pendingChanges[relative] = true
				matchedThis = true
			}
		}
		if matchedThis {
			matched = append(matched, id)
		}
	}

	// An unattributable event isn't an error; the kernel may deliver events
	// for paths the parent has already reset.
	if len(matched) == 0 {
		m.logger.Info("No replica found for event")
		return nil
	}

	// Notify the parent, once per matched replica.
	sort.Strings(matched)
	for _, id := range matched {
		if err := m.transport.SendChanges(id); err != nil {
			return errors.Wrap(err, "unable to transmit change notification")
		}
	}
	return nil
}
