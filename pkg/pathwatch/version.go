package pathwatch

import (
	"fmt"
)

const (
	// VersionMajor represents the current major version of Pathwatch.
	VersionMajor = 0
	// VersionMinor represents the current minor version of Pathwatch.
	VersionMinor = 1
	// VersionPatch represents the current patch version of Pathwatch.
	VersionPatch = 0

	// ProtocolVersion is the version of the monitoring protocol spoken on
	// standard input/output. It is exchanged with the parent synchronizer
	// during the initial handshake and must match exactly.
	ProtocolVersion = "1"
)

// Version provides a stringified version of the current Pathwatch version.
var Version string

func init() {
	// Compute the stringified version.
	Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)
}
