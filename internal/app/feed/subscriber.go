/*
Package feed streams chat traffic to read-only WebSocket observers.

This file defines the Subscriber, one observer's WebSocket connection. The
write loop drains the subscriber's queue and keeps the connection alive with
pings; the read loop only watches for pongs and the close handshake.
*/
package feed

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quichat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the hub to wait for a Pong message.
	pongWait = 60 * time.Second

	// frequency at which a Ping message is sent.
	pingPeriod = (pongWait * 9) / 10

	// observers only send control frames.
	maxMessageSize = 512
)

// Subscriber is a WebSocket connection receiving feed events.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn

	// queued JSON events; closed by the hub when the subscriber is removed.
	send chan []byte

	logger zerolog.Logger
}

func NewSubscriber(hub *Hub, conn *websocket.Conn, remote string) *Subscriber {
	return &Subscriber{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: logx.Component("feed").With().Str("remote", remote).Logger(),
	}
}

// Serve attaches conn to h and blocks until the subscriber goes away. When the
// hub has already stopped, conn is closed and Serve returns false at once.
func (h *Hub) Serve(conn *websocket.Conn, remote string) bool {
	s := NewSubscriber(h, conn, remote)
	if !h.Register(s) {
		s.logger.Info().Msg("Feed hub stopped, rejecting subscriber.")
		_ = conn.Close()
		return false
	}

	go s.WritePump()
	s.ReadPump()
	return true
}

// ReadPump discards incoming data until the connection fails, then
// unregisters the subscriber.
func (s *Subscriber) ReadPump() {
	defer s.hub.Unregister(s)

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Feed connection closed unexpectedly")
			}
			return
		}
	}
}

// WritePump writes queued events and periodic pings until the queue is closed
// or a write fails.
func (s *Subscriber) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Feed connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !s.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage returns false when the write loop should stop.
func (s *Subscriber) writeQueuedMessage(message []byte, ok bool) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			s.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		s.logger.Warn().Err(err).Msg("Error writing feed event")
		return false
	}
	return true
}

func (s *Subscriber) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}
	return true
}
