// Package memconn is an in-process implementation of the transport interfaces.
// Streams are unbounded buffers, so writers never wait for readers.
package memconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"quichat/internal/transport"
)

const backlog = 64

// pipe is a one-way byte buffer with close semantics matching a QUIC stream.
type pipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
	err    error
}

func newPipe() *pipe {
	p := &pipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.buf.Len() > 0 {
		return p.buf.Read(b)
	}
	return 0, p.err
}

func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.buf.Write(b)
	p.cond.Broadcast()
	return len(b), nil
}

// close ends the pipe. Buffered bytes stay readable; err is returned afterwards.
func (p *pipe) close(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.err = err
	p.cond.Broadcast()
}

// cancel drops unread bytes and fails later reads and writes.
func (p *pipe) cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Reset()
	p.closed = true
	p.err = err
	p.cond.Broadcast()
}

// ErrReadCancelled is returned on both sides of a stream after CancelRead.
var ErrReadCancelled = errors.New("memconn: stream read cancelled")

type stream struct {
	r *pipe
	w *pipe
}

func (s *stream) Read(b []byte) (int, error)  { return s.r.Read(b) }
func (s *stream) Write(b []byte) (int, error) { return s.w.Write(b) }
func (s *stream) Close() error {
	s.w.close(io.EOF)
	return nil
}
func (s *stream) CancelRead(uint64) { s.r.cancel(ErrReadCancelled) }

type sendStream struct{ w *pipe }

func (s *sendStream) Write(b []byte) (int, error) { return s.w.Write(b) }
func (s *sendStream) Close() error {
	s.w.close(io.EOF)
	return nil
}

// link is the state shared by both ends of a connection.
type link struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	pipes  []*pipe
	code   uint64
	reason string
}

func (l *link) track(p ...*pipe) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return false
	}
	l.pipes = append(l.pipes, p...)
	return true
}

func (l *link) close(code uint64, reason string) {
	l.mu.Lock()
	if l.ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.code, l.reason = code, reason
	l.cancel()
	pipes := l.pipes
	l.pipes = nil
	l.mu.Unlock()

	err := &CloseError{Code: code, Reason: reason}
	for _, p := range pipes {
		p.close(err)
	}
}

// CloseError is returned by every operation on a closed connection.
type CloseError struct {
	Code   uint64
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("memconn: connection closed (code %d): %s", e.Code, e.Reason)
}

func (e *CloseError) Is(target error) bool {
	return target == transport.ErrClosed
}

type addr string

func (a addr) Network() string { return "mem" }
func (a addr) String() string  { return string(a) }

// Conn is one end of an in-memory connection.
type Conn struct {
	link   *link
	local  addr
	remote addr
	peer   *Conn
	bidi   chan *stream
	uni    chan *pipe
}

// Pipe returns the two ends of a new connection.
func Pipe() (*Conn, *Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &link{ctx: ctx, cancel: cancel}
	a := &Conn{link: l, local: "mem-a", remote: "mem-b", bidi: make(chan *stream, backlog), uni: make(chan *pipe, backlog)}
	b := &Conn{link: l, local: "mem-b", remote: "mem-a", bidi: make(chan *stream, backlog), uni: make(chan *pipe, backlog)}
	a.peer, b.peer = b, a
	return a, b
}

func (c *Conn) closedErr() error {
	c.link.mu.Lock()
	defer c.link.mu.Unlock()
	return &CloseError{Code: c.link.code, Reason: c.link.reason}
}

func (c *Conn) OpenStream(ctx context.Context) (transport.Stream, error) {
	up, down := newPipe(), newPipe()
	if !c.link.track(up, down) {
		return nil, c.closedErr()
	}
	select {
	case c.peer.bidi <- &stream{r: up, w: down}:
		return &stream{r: down, w: up}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.link.ctx.Done():
		return nil, c.closedErr()
	}
}

func (c *Conn) AcceptStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-c.bidi:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.link.ctx.Done():
		return nil, c.closedErr()
	}
}

func (c *Conn) OpenUniStream(ctx context.Context) (transport.SendStream, error) {
	p := newPipe()
	if !c.link.track(p) {
		return nil, c.closedErr()
	}
	select {
	case c.peer.uni <- p:
		return &sendStream{w: p}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.link.ctx.Done():
		return nil, c.closedErr()
	}
}

func (c *Conn) AcceptUniStream(ctx context.Context) (transport.ReceiveStream, error) {
	select {
	case p := <-c.uni:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.link.ctx.Done():
		return nil, c.closedErr()
	}
}

func (c *Conn) RemoteAddr() net.Addr { return c.remote }

func (c *Conn) CloseWithError(code uint64, reason string) error {
	c.link.close(code, reason)
	return nil
}

func (c *Conn) Context() context.Context { return c.link.ctx }

// Closed reports whether the connection has been torn down by either end.
func (c *Conn) Closed() bool { return c.link.ctx.Err() != nil }

// Listener hands out the server ends of connections created by Dial.
type Listener struct {
	conns chan *Conn
	done  chan struct{}
	once  sync.Once
}

func NewListener() *Listener {
	return &Listener{
		conns: make(chan *Conn, backlog),
		done:  make(chan struct{}),
	}
}

// Dial creates a connection and queues its server end for Accept.
func (l *Listener) Dial(ctx context.Context) (*Conn, error) {
	select {
	case <-l.done:
		return nil, transport.ErrClosed
	default:
	}

	client, server := Pipe()
	select {
	case l.conns <- server:
		return client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, transport.ErrClosed
	}
}

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, transport.ErrClosed
	}
}

func (l *Listener) Addr() net.Addr { return addr("mem-listener") }

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

var _ transport.Conn = (*Conn)(nil)
var _ transport.Listener = (*Listener)(nil)

// IsClosed reports whether err came from a closed connection.
func IsClosed(err error) bool {
	return errors.Is(err, transport.ErrClosed)
}
