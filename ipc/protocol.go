package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxLineLength guards against a peer that never sends a newline.
const maxLineLength = 1 << 20

// Envelope is one framed line of the console protocol.
type Envelope struct {
	Type string
	Data string
}

// ReadEnvelope reads a single newline-terminated line. Lines starting with
// InputPrefix are user input; everything else is server output. A final line
// without a newline is still returned before io.EOF.
func ReadEnvelope(r *bufio.Reader) (Envelope, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return Envelope{}, err
	}
	if len(line) > maxLineLength {
		return Envelope{}, fmt.Errorf("line too long: %d bytes", len(line))
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

	if data, ok := strings.CutPrefix(line, InputPrefix); ok {
		return Envelope{Type: TypeInput, Data: data}, nil
	}
	return Envelope{Type: TypeLine, Data: line}, nil
}

// WriteEnvelope writes env as one line, prefixed according to its type.
func WriteEnvelope(w io.Writer, env Envelope) error {
	var prefix string
	switch env.Type {
	case TypeInput:
		prefix = InputPrefix
	case TypeInfo:
		prefix = InfoPrefix
	case TypeSend, TypeLine:
	default:
		return fmt.Errorf("unknown envelope type %q", env.Type)
	}
	if _, err := io.WriteString(w, prefix+env.Data+"\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}
