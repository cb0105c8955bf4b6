package monitor

import (
	"github.com/pathwatch-io/pathwatch/pkg/filesystem"
)

// replica tracks the monitoring state for a single registered synchronization
// endpoint. All accesses are performed by the dispatcher, so no locking is
// required.
type replica struct {
	// root is the base path against which pending change paths are made
	// relative. It is fixed at registration time.
	root string
	// watchedPaths is the set of paths registered with the watcher on this
	// replica's behalf. Every element lies at or beneath root.
	watchedPaths map[string]bool
	// pendingChanges is the set of root-relative paths that have changed
	// since the last drain.
	pendingChanges map[string]bool
}

// newReplica creates replica state for the specified root.
func newReplica(root string) *replica {
	return &replica{
		root:           root,
		watchedPaths:   make(map[string]bool),
		pendingChanges: make(map[string]bool),
	}
}

// containsPath indicates whether or not any of the replica's watched paths
// covers the specified path.
func (r *replica) containsPath(path string) bool {
	for base := range r.watchedPaths {
		if filesystem.ContainsPath(base, path) {
			return true
		}
	}
	return false
}
