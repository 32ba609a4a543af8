package ipc

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Connection is a single console session: user input and server output come
// in on the reader, outbound commands and local messages go out on the writer.
type Connection struct {
	rw       io.ReadWriter
	handlers map[string]Handler
	mu       sync.Mutex // serializes writes from concurrent replays
}

func NewConnection(rw io.ReadWriter, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{
		rw:       rw,
		handlers: handlers,
	}
}

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

func (c *Connection) Send(msgType, data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteEnvelope(c.rw, Envelope{Type: msgType, Data: data})
}

// SendCommand writes an outbound command. It matches rules.Sink; write
// failures are logged because a replay has nobody to return them to.
func (c *Connection) SendCommand(text string) {
	if err := c.Send(TypeSend, text); err != nil {
		slog.Error("failed to send command", "command", text, "error", err)
	}
}

// Info writes a client-local message.
func (c *Connection) Info(text string) {
	if err := c.Send(TypeInfo, text); err != nil {
		slog.Error("failed to write info", "error", err)
	}
}

// ReadLoop blocks until the reader is exhausted or errors. It owns the
// stream lifetime and closes it on return when it is an io.Closer.
func (c *Connection) ReadLoop() error {
	if cl, ok := c.rw.(io.Closer); ok {
		defer cl.Close()
	}

	r := bufio.NewReader(c.rw)
	for {
		env, err := ReadEnvelope(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Debug("connection read ended")
				return nil
			}
			slog.Info("connection read ended", "error", err)
			return err
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			slog.Warn("no handler for message type", "type", env.Type)
			continue
		}

		resp, err := handler(env)
		if err != nil {
			slog.Error("handler error", "type", env.Type, "error", err)
			continue
		}

		if resp != nil {
			if err := c.Send(resp.Type, resp.Data); err != nil {
				slog.Error("failed to send response", "type", resp.Type, "error", err)
				return err
			}
		}
	}
}

// Stream joins a reader and a writer into one io.ReadWriteCloser, e.g.
// stdin and stdout. Close closes only the reader so replays still finishing
// can write.
type Stream struct {
	io.Reader
	io.Writer
}

func (s Stream) Close() error {
	if c, ok := s.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
