package protocol

import (
	"strings"

	"github.com/pathwatch-io/pathwatch/pkg/encoding"
)

// Verbs sent by the parent synchronizer.
const (
	// VerbVersion requests a protocol version check. It also opens the
	// monitor's side of the conversation during the handshake.
	VerbVersion = "VERSION"
	// VerbDebug carries debugging directives. It is accepted and ignored.
	VerbDebug = "DEBUG"
	// VerbStart registers (or extends) a replica.
	VerbStart = "START"
	// VerbDir announces a subdirectory. It requires only acknowledgement,
	// since recursive watches already cover subdirectories.
	VerbDir = "DIR"
	// VerbLink announces a symbolic link to be followed.
	VerbLink = "LINK"
	// VerbWait announces that the parent is waiting on a replica.
	VerbWait = "WAIT"
	// VerbChanges requests the pending changes for a replica.
	VerbChanges = "CHANGES"
	// VerbReset unregisters a replica.
	VerbReset = "RESET"
	// VerbDone terminates a request sequence. It is accepted and ignored.
	VerbDone = "DONE"
)

// Verbs sent by the monitor.
const (
	// VerbOK acknowledges a request.
	VerbOK = "OK"
	// VerbRecursive reports a single changed subtree during a CHANGES reply.
	VerbRecursive = "RECURSIVE"
	// VerbError reports an error. Errors are fatal, except for an unknown
	// replica in WAIT when strict wait handling is disabled.
	VerbError = "ERROR"
)

// Message represents a single protocol line: a verb and its arguments.
type Message struct {
	// Verb is the message verb.
	Verb string
	// Arguments are the message arguments, in decoded form.
	Arguments []string
}

// Encode converts a message to its wire form, percent-encoding each argument.
// A message without arguments encodes to the bare verb with no trailing
// separator.
func (m Message) Encode() string {
	if len(m.Arguments) == 0 {
		return m.Verb
	}
	builder := &strings.Builder{}
	builder.WriteString(m.Verb)
	for _, argument := range m.Arguments {
		builder.WriteByte(' ')
		builder.WriteString(encoding.EncodePercent(argument))
	}
	return builder.String()
}

// DecodeMessage converts a wire line to a message, percent-decoding each
// argument. Decoding never fails; unknown verbs are passed through for the
// dispatcher to reject.
func DecodeMessage(line string) Message {
	var message Message
	for index, word := range strings.Fields(line) {
		if index == 0 {
			message.Verb = word
		} else {
			message.Arguments = append(message.Arguments, encoding.DecodePercent(word))
		}
	}
	return message
}
