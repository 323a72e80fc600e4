/*
Package transport describes the stream-multiplexed connection the chat server
runs on.

This file adapts quic-go to the Conn and Listener interfaces.
*/
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated during the TLS handshake.
const ALPN = "quichat"

// Options tunes the QUIC connection.
type Options struct {
	KeepAlive   time.Duration
	IdleTimeout time.Duration
}

// DefaultOptions sends a keep-alive every second and drops a connection after
// five idle seconds.
var DefaultOptions = Options{
	KeepAlive:   time.Second,
	IdleTimeout: 5 * time.Second,
}

func (o Options) quicConfig(server bool) *quic.Config {
	conf := &quic.Config{
		KeepAlivePeriod: o.KeepAlive,
		MaxIdleTimeout:  o.IdleTimeout,
	}
	if server {
		// Clients never open one-way streams towards the server.
		conf.MaxIncomingUniStreams = -1
	}
	return conf
}

func withALPN(tlsConf *tls.Config) *tls.Config {
	conf := tlsConf.Clone()
	if len(conf.NextProtos) == 0 {
		conf.NextProtos = []string{ALPN}
	}
	return conf
}

// Listen opens a QUIC listener on addr.
func Listen(addr string, tlsConf *tls.Config, opts Options) (Listener, error) {
	ln, err := quic.ListenAddr(addr, withALPN(tlsConf), opts.quicConfig(true))
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &quicListener{ln: ln}, nil
}

// Dial connects to a QUIC server at addr.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, opts Options) (Conn, error) {
	conn, err := quic.DialAddr(ctx, addr, withALPN(tlsConf), opts.quicConfig(false))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &quicConn{conn: conn}, nil
}

type quicListener struct {
	ln *quic.Listener
}

func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &quicConn{conn: conn}, nil
}

func (l *quicListener) Addr() net.Addr { return l.ln.Addr() }
func (l *quicListener) Close() error   { return l.ln.Close() }

type quicConn struct {
	conn quic.Connection
}

type quicStream struct {
	quic.Stream
}

func (s quicStream) CancelRead(code uint64) {
	s.Stream.CancelRead(quic.StreamErrorCode(code))
}

func (c *quicConn) OpenStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return quicStream{s}, nil
}

func (c *quicConn) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return quicStream{s}, nil
}

func (c *quicConn) OpenUniStream(ctx context.Context) (SendStream, error) {
	return c.conn.OpenUniStreamSync(ctx)
}

func (c *quicConn) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	return c.conn.AcceptUniStream(ctx)
}

func (c *quicConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *quicConn) CloseWithError(code uint64, reason string) error {
	return c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

func (c *quicConn) Context() context.Context { return c.conn.Context() }
