/*
Package client is the Go client for the chat protocol.

A Client wraps one transport connection. Each request runs on its own
bidirectional stream; notifications pushed by the server are read by Listen.
Login must succeed before the other requests are accepted by the server.
*/
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"quichat/internal/app/protocol"
	"quichat/internal/app/user"
	"quichat/internal/pkg/wire"
	"quichat/internal/transport"
)

// ErrNotLoggedIn is returned by requests that need a session before Login succeeded.
var ErrNotLoggedIn = errors.New("client: not logged in")

// Client talks to a chat server over one connection. It is safe for
// concurrent use.
type Client struct {
	conn transport.Conn
	opts []wire.Option

	mu      sync.Mutex
	self    *user.User
	nextSeq uint32
}

// Option configures a Client.
type Option func(*Client)

// WithMaxSequenceLen caps sequence lengths decoded from the server.
func WithMaxSequenceLen(n uint32) Option {
	return func(c *Client) { c.opts = append(c.opts, wire.WithMaxSequenceLen(n)) }
}

// New wraps an established connection.
func New(conn transport.Conn, opts ...Option) *Client {
	c := &Client{conn: conn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to addr over QUIC.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, topts transport.Options, opts ...Option) (*Client, error) {
	conn, err := transport.Dial(ctx, addr, tlsConf, topts)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

func (c *Client) do(ctx context.Context, cmd protocol.Command, req, resp any) error {
	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.CancelRead(transport.CodeNoError)

	if err := protocol.WriteRequest(stream, cmd, req); err != nil {
		_ = stream.Close()
		return err
	}
	if err := stream.Close(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- protocol.ReadResponse(stream, resp, c.opts...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login registers name and returns the identity the server issued.
func (c *Client) Login(ctx context.Context, name string) (user.User, error) {
	var resp protocol.LoginResponse
	if err := c.do(ctx, protocol.CommandLogin, protocol.LoginRequest{Name: name}, &resp); err != nil {
		return user.User{}, err
	}

	u := user.User{SessionID: resp.SessionID, Name: strings.TrimSpace(name)}
	c.mu.Lock()
	c.self = &u
	c.mu.Unlock()
	return u, nil
}

// Self returns the logged-in identity.
func (c *Client) Self() (user.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil {
		return user.User{}, false
	}
	return *c.self, true
}

// Ping sends the next sequence number and checks that it is echoed back.
func (c *Client) Ping(ctx context.Context) (uint32, error) {
	c.mu.Lock()
	if c.self == nil {
		c.mu.Unlock()
		return 0, ErrNotLoggedIn
	}
	id := c.self.SessionID
	seq := c.nextSeq
	c.nextSeq++
	c.mu.Unlock()

	return c.PingWith(ctx, id, seq)
}

// PingWith sends a ping with an explicit session id and sequence number.
func (c *Client) PingWith(ctx context.Context, id uuid.UUID, seq uint32) (uint32, error) {
	var resp protocol.PingResponse
	if err := c.do(ctx, protocol.CommandPing, protocol.PingRequest{SessionID: id, Sequence: seq}, &resp); err != nil {
		return 0, err
	}
	if resp.Sequence != seq {
		return resp.Sequence, &SequenceMismatchError{Sent: seq, Received: resp.Sequence}
	}
	return resp.Sequence, nil
}

// Send publishes text to the other peers.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.do(ctx, protocol.CommandSendMessage, protocol.SendMessageRequest{Text: text}, nil)
}

// Peers lists the logged-in users, including this one.
func (c *Client) Peers(ctx context.Context) ([]user.User, error) {
	var resp protocol.PeerListResponse
	if err := c.do(ctx, protocol.CommandListPeers, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// Listen reads server notifications and passes each batch of messages to fn
// until ctx is cancelled or the connection closes. Unknown notification tags
// and malformed notifications are skipped. A nil error is returned when ctx
// ends the loop.
func (c *Client) Listen(ctx context.Context, fn func([]protocol.ChatMessage)) error {
	for {
		stream, err := c.conn.AcceptUniStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		n, msgs, err := protocol.ReadNotification(stream, c.opts...)
		if err != nil {
			if c.conn.Context().Err() != nil {
				return err
			}
			continue
		}
		if !n.Known() {
			continue
		}
		fn(msgs)
	}
}

// Close closes the connection. The server announces the departure to the
// remaining peers.
func (c *Client) Close() error {
	return c.conn.CloseWithError(transport.CodeNoError, "client closed")
}
