package protocol

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/pathwatch-io/pathwatch/pkg/logging"
)

// Transport reads and writes protocol lines over a pair of byte streams,
// typically standard input and standard output. Reads and writes may be
// performed concurrently with each other, but neither reads nor writes may be
// performed concurrently with themselves.
type Transport struct {
	// reader buffers the input stream.
	reader *bufio.Reader
	// writer buffers the output stream.
	writer *bufio.Writer
	// logger is the transport's logger.
	logger *logging.Logger
}

// NewTransport creates a new transport over the specified streams.
func NewTransport(reader io.Reader, writer io.Writer, logger *logging.Logger) *Transport {
	return &Transport{
		reader: bufio.NewReader(reader),
		writer: bufio.NewWriter(writer),
		logger: logger,
	}
}

// ReadLine reads a single line from the input stream, blocking until a full
// line is available. The line terminator is stripped. An io.EOF return
// indicates clean end-of-input.
func (t *Transport) ReadLine() (string, error) {
	// Perform the read.
	line, err := t.reader.ReadString('\n')
	if err != nil {
		// Tolerate a missing terminator on the final line.
		if err == io.EOF && line != "" {
			t.logger.Debugf("<< %s", line)
			return strings.TrimRight(line, "\r\n"), nil
		}
		if err == io.EOF {
			return "", io.EOF
		}
		return "", errors.Wrap(err, "unable to read input line")
	}

	// Strip the terminator.
	line = strings.TrimRight(line, "\r\n")
	t.logger.Debugf("<< %s", line)
	return line, nil
}

// WriteLine writes a single line to the output stream, appending the line
// terminator and flushing.
func (t *Transport) WriteLine(line string) error {
	t.logger.Debugf(">> %s", line)
	if _, err := t.writer.WriteString(line); err != nil {
		return errors.Wrap(err, "unable to write output line")
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "unable to write line terminator")
	}
	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "unable to flush output")
	}
	return nil
}

// Send encodes and writes a message.
func (t *Transport) Send(verb string, arguments ...string) error {
	return t.WriteLine(Message{Verb: verb, Arguments: arguments}.Encode())
}

// SendVersion transmits the protocol version announcement.
func (t *Transport) SendVersion(version string) error {
	return t.Send(VerbVersion, version)
}

// SendOK transmits an acknowledgement.
func (t *Transport) SendOK() error {
	return t.Send(VerbOK)
}

// SendChanges transmits a pending-changes notification for a replica.
func (t *Transport) SendChanges(replica string) error {
	return t.Send(VerbChanges, replica)
}

// SendRecursive transmits a single changed subtree during a CHANGES reply.
func (t *Transport) SendRecursive(path string) error {
	return t.Send(VerbRecursive, path)
}

// SendDone transmits the terminator of a CHANGES reply.
func (t *Transport) SendDone() error {
	return t.Send(VerbDone)
}

// SendError transmits an error. The message is free-form text for human
// consumption and is transmitted without argument encoding.
func (t *Transport) SendError(message string) error {
	return t.WriteLine(VerbError + " " + message)
}
