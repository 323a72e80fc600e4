/*
Package chat contains the chat server: the per-connection command state machine
and the fan-out of messages to logged-in peers.

This file defines the connection state machine:

	Unauthenticated --Login--> Authenticated(session) --closed--> Terminated

Each exchange arrives on its own bidirectional stream: one command tag, the
request, then one status byte and the response written back before the stream
is closed. A malformed request only abandons its own stream.
*/
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"quichat/internal/app/protocol"
	"quichat/internal/app/user"
	"quichat/internal/pkg/errs"
	"quichat/internal/pkg/limiter"
	"quichat/internal/pkg/logx"
	"quichat/internal/pkg/wire"
	"quichat/internal/transport"
)

type connection struct {
	srv     *Server
	conn    transport.Conn
	limiter *limiter.CommandLimiter
	logger  zerolog.Logger

	// user is nil until a successful Login. Only the serve goroutine touches it.
	user *user.User
}

func newConnection(srv *Server, conn transport.Conn) *connection {
	return &connection{
		srv:     srv,
		conn:    conn,
		limiter: limiter.NewCommandLimiter(srv.opts.CommandRate, srv.opts.CommandBurst),
		logger: srv.logger.With().
			Str("remote_ip", logx.AnonymizeAddr(conn.RemoteAddr())).
			Logger(),
	}
}

func (c *connection) serve(ctx context.Context) {
	c.logger.Info().Msg("Connection accepted")
	defer c.cleanupOnDisconnect(ctx)

	for {
		stream, err := c.conn.AcceptStream(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Msg("Connection command loop ended")
			return
		}
		c.handleStream(ctx, stream)
	}
}

// cleanupOnDisconnect drops the session and tells the remaining peers. The
// leave notice is sent at most once because only one Unregister can succeed.
func (c *connection) cleanupOnDisconnect(ctx context.Context) {
	_ = c.conn.CloseWithError(transport.CodeNoError, "")

	if c.user == nil {
		c.logger.Info().Msg("Connection closed before login")
		return
	}

	u, removed := c.srv.store.Unregister(c.user.SessionID)
	if !removed {
		return
	}
	c.logger.Info().Int("peers_remaining", c.srv.store.Len()).Msg("Peer left")

	// The serve context may already be cancelled on shutdown; the notice
	// still goes out to whoever is reachable within the fan-out timeout.
	c.srv.broadcaster.Broadcast(context.WithoutCancel(ctx), protocol.NewSystemMessage(u.Name+" has left the chat!"), u.SessionID)
}

// handleStream runs one exchange. after, when set, runs once the response
// has been written and the stream closed.
func (c *connection) handleStream(ctx context.Context, stream transport.Stream) {
	var after func()
	defer func() {
		stream.CancelRead(transport.CodeNoError)
		_ = stream.Close()
		if after != nil {
			after()
		}
	}()

	dec := wire.NewDecoder(stream, c.srv.opts.decoderOptions()...)
	cmd, err := protocol.ReadCommand(dec)
	if err != nil {
		c.logDecodeError(err, "command tag")
		return
	}

	if !cmd.Known() {
		c.logger.Warn().Str("command", cmd.String()).Msg("Unknown command, dropping exchange")
		return
	}

	logger := c.logger.With().Str("command", cmd.String()).Logger()

	if !c.limiter.Allow() {
		logger.Warn().Msg("Command rate exceeded")
		c.writeError(stream, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	switch cmd {
	case protocol.CommandLogin:
		after = c.handleLogin(ctx, stream, dec)
	case protocol.CommandSendMessage:
		after = c.handleSendMessage(ctx, stream, dec)
	case protocol.CommandPing:
		c.handlePing(stream, dec)
	case protocol.CommandListPeers:
		c.handleListPeers(stream)
	}
}

func (c *connection) handleLogin(ctx context.Context, stream transport.Stream, dec *wire.Decoder) func() {
	var req protocol.LoginRequest
	if err := dec.Decode(&req); err != nil {
		c.logDecodeError(err, "login request")
		return nil
	}

	if c.user != nil {
		c.writeError(stream, errs.NewError(errs.ErrAlreadyLoggedIn))
		return nil
	}

	name := strings.TrimSpace(req.Name)
	if len(name) > c.srv.opts.MaxNameBytes {
		c.writeError(stream, errs.NewError(errs.ErrNameTooLong, c.srv.opts.MaxNameBytes))
		return nil
	}

	reg, cerr := c.srv.store.Register(name, c.conn)
	if cerr != nil {
		c.logger.Info().Str("name", name).Int("code", cerr.Code).Msg("Login rejected")
		c.writeError(stream, cerr)
		return nil
	}

	u := reg.User
	c.user = &u
	c.logger = c.logger.With().
		Str("session_id", u.SessionID.String()).
		Str("name", u.Name).
		Logger()
	c.logger.Info().Int("history", len(reg.History)).Msg("Peer logged in")

	if err := protocol.WriteSuccess(stream, protocol.LoginResponse{SessionID: u.SessionID}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write login response")
	}

	return func() {
		if err := c.srv.broadcaster.Replay(ctx, c.conn, reg.History); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to replay history")
		}
		c.srv.broadcaster.Broadcast(ctx, protocol.NewSystemMessage(u.Name+" has entered the chat!"), u.SessionID)
	}
}

func (c *connection) handleSendMessage(ctx context.Context, stream transport.Stream, dec *wire.Decoder) func() {
	var req protocol.SendMessageRequest
	if err := dec.Decode(&req); err != nil {
		c.logDecodeError(err, "send message request")
		return nil
	}

	if c.user == nil {
		c.writeError(stream, errs.NewError(errs.ErrUnauthorized))
		return nil
	}

	if strings.TrimSpace(req.Text) == "" {
		c.writeError(stream, errs.NewError(errs.ErrMessageContentEmpty))
		return nil
	}
	if len(req.Text) > c.srv.opts.MaxMessageBytes {
		c.writeError(stream, errs.NewError(errs.ErrMessageContentTooLong, c.srv.opts.MaxMessageBytes))
		return nil
	}

	msg := protocol.NewUserMessage(req.Text, *c.user)
	recipients := c.srv.store.Publish(msg, c.user.SessionID)

	if err := protocol.WriteSuccess(stream, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write send message response")
	}

	return func() {
		c.srv.broadcaster.notifyObservers(msg)
		c.srv.broadcaster.Deliver(ctx, recipients, []protocol.ChatMessage{msg})
	}
}

func (c *connection) handlePing(stream transport.Stream, dec *wire.Decoder) {
	var req protocol.PingRequest
	if err := dec.Decode(&req); err != nil {
		c.logDecodeError(err, "ping request")
		return
	}

	switch {
	case c.user == nil:
		c.writeError(stream, errs.NewError(errs.ErrUnauthorized))
		return
	case req.SessionID != c.user.SessionID:
		c.logger.Warn().Str("claimed_session", req.SessionID.String()).Msg("Ping with foreign session id")
		c.writeError(stream, errs.NewError(errs.ErrSessionMismatch))
		return
	}

	if err := protocol.WriteSuccess(stream, protocol.PingResponse{Sequence: req.Sequence}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write ping response")
	}
}

func (c *connection) handleListPeers(stream transport.Stream) {
	if c.user == nil {
		c.writeError(stream, errs.NewError(errs.ErrUnauthorized))
		return
	}

	if err := protocol.WriteSuccess(stream, protocol.PeerListResponse{Peers: c.srv.store.Users()}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write peer list")
	}
}

func (c *connection) writeError(stream transport.Stream, cerr *errs.CustomError) {
	if err := protocol.WriteError(stream, cerr.Message); err != nil {
		c.logger.Warn().Err(err).Int("code", cerr.Code).Msg("Failed to write error response")
	}
}

func (c *connection) logDecodeError(err error, what string) {
	if isClosedErr(err) {
		c.logger.Debug().Err(err).Str("decoding", what).Msg("Stream closed while decoding")
		return
	}
	event := c.logger.Warn()
	if errors.Is(err, wire.ErrUnexpectedEnd) {
		event = c.logger.Info()
	}
	event.Err(err).Str("decoding", what).Msg("Malformed request, abandoning stream")
}
