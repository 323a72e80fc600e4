/*
Package transport describes the stream-multiplexed connection the chat server
runs on.

The chat code only depends on the interfaces below. The QUIC implementation
lives in quic.go; tests use the in-memory implementation in
internal/testutil/memconn.
*/
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// Application close codes sent with CloseWithError.
const (
	CodeNoError  uint64 = 0x0
	CodeShutdown uint64 = 0x1
)

// ErrClosed is returned by in-process implementations once a connection or
// listener has been closed.
var ErrClosed = errors.New("transport: closed")

// Stream is a bidirectional stream. Close finishes the send side only; the
// peer reads io.EOF after the last written byte. CancelRead discards anything
// still unread and tells the peer to stop sending.
type Stream interface {
	io.Reader
	io.Writer
	Close() error
	CancelRead(code uint64)
}

// SendStream is the writing end of a unidirectional stream.
type SendStream interface {
	io.Writer
	Close() error
}

// ReceiveStream is the reading end of a unidirectional stream.
type ReceiveStream interface {
	io.Reader
}

// Conn is one multiplexed connection between a client and the server.
type Conn interface {
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)
	OpenUniStream(ctx context.Context) (SendStream, error)
	AcceptUniStream(ctx context.Context) (ReceiveStream, error)

	RemoteAddr() net.Addr

	// CloseWithError tears the connection down. Blocked Accept and Read calls
	// on either side return an error.
	CloseWithError(code uint64, reason string) error

	// Context is cancelled when the connection is closed.
	Context() context.Context
}

// Listener accepts incoming connections.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// SetWriteDeadline applies a write deadline when the stream supports one.
func SetWriteDeadline(s SendStream, t time.Time) {
	if d, ok := s.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(t)
	}
}
