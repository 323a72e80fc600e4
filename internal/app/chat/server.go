/*
Package chat contains the chat server: the per-connection command state machine
and the fan-out of messages to logged-in peers.

This file defines the Server, which owns the shared session Store and the
Broadcaster, accepts connections, and tracks them so they can be closed on
shutdown.
*/
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quichat/internal/app/session"
	"quichat/internal/configs"
	"quichat/internal/pkg/logx"
	"quichat/internal/pkg/wire"
	"quichat/internal/transport"
)

// Options are the protocol limits applied to every connection.
type Options struct {
	MaxNameBytes    int
	MaxMessageBytes int

	// MaxSequenceLen caps decoded sequence lengths. 0 means unlimited.
	MaxSequenceLen uint32

	// CommandRate is the sustained commands per second per connection;
	// values <= 0 disable limiting.
	CommandRate  float64
	CommandBurst int

	FanoutTimeout time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(configs.Default())
}

func OptionsFromConfig(cfg *configs.AppConfig) Options {
	return Options{
		MaxNameBytes:    cfg.MaxNameBytes,
		MaxMessageBytes: cfg.MaxMessageBytes,
		MaxSequenceLen:  cfg.MaxSequenceLen,
		CommandRate:     cfg.CommandRate,
		CommandBurst:    cfg.CommandBurst,
		FanoutTimeout:   cfg.FanoutTimeout,
	}
}

func (o Options) decoderOptions() []wire.Option {
	return []wire.Option{wire.WithMaxSequenceLen(o.MaxSequenceLen)}
}

// Server serves the chat protocol.
type Server struct {
	store       *session.Store
	broadcaster *Broadcaster
	opts        Options
	logger      zerolog.Logger

	mu       sync.Mutex
	conns    map[*connection]struct{}
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer builds a server around store. The same store must not be shared
// with another Server.
func NewServer(store *session.Store, opts Options) *Server {
	return &Server{
		store:       store,
		broadcaster: NewBroadcaster(store, opts.FanoutTimeout),
		opts:        opts,
		logger:      logx.Component("chat"),
		conns:       make(map[*connection]struct{}),
	}
}

func (s *Server) Store() *session.Store { return s.store }

func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

// Serve accepts connections from ln until ctx is cancelled or ln fails, then
// closes ln and waits for every connection handler to return.
func (s *Server) Serve(ctx context.Context, ln transport.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Chat server listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var err error
	for {
		conn, acceptErr := ln.Accept(ctx)
		if acceptErr != nil {
			if ctx.Err() == nil {
				err = acceptErr
			}
			break
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}

	_ = ln.Close()
	s.Shutdown()
	s.wg.Wait()

	if err != nil {
		s.logger.Error().Err(err).Msg("Accept loop stopped")
		return err
	}
	s.logger.Info().Msg("Chat server stopped")
	return nil
}

// ServeConn runs the command loop for one connection and returns once the
// connection is gone and its session has been cleaned up.
func (s *Server) ServeConn(ctx context.Context, conn transport.Conn) {
	c := newConnection(s, conn)
	if !s.track(c) {
		_ = conn.CloseWithError(transport.CodeShutdown, "server shutting down")
		return
	}
	defer s.untrack(c)

	c.serve(ctx)
}

func (s *Server) track(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// Shutdown closes every live connection and refuses new ones. Connection
// handlers still run their cleanup.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if len(conns) > 0 {
		s.logger.Info().Int("connections", len(conns)).Msg("Closing live connections")
	}
	for _, c := range conns {
		_ = c.conn.CloseWithError(transport.CodeShutdown, "server shutting down")
	}
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// isClosedErr reports errors that simply mean the peer or the server went away.
func isClosedErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrClosed)
}
