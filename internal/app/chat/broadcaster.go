/*
Package chat contains the chat server: the per-connection command state machine
and the fan-out of messages to logged-in peers.

This file defines the Broadcaster. Every delivery opens a fresh one-way stream
per recipient and writes a single NewMessage notification. Recipients are
always taken from a Store snapshot, so no lock is held while writing.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quichat/internal/app/protocol"
	"quichat/internal/app/session"
	"quichat/internal/pkg/logx"
	"quichat/internal/transport"
)

// DefaultFanoutTimeout bounds the delivery to a single peer.
const DefaultFanoutTimeout = 2 * time.Second

// Observer receives every message that is fanned out to peers.
// Observe must not block.
type Observer interface {
	Observe(msg protocol.ChatMessage)
}

// Broadcaster pushes notifications to peers registered in a Store.
type Broadcaster struct {
	store   *session.Store
	timeout time.Duration
	logger  zerolog.Logger

	mu        sync.RWMutex
	observers map[Observer]struct{}
}

func NewBroadcaster(store *session.Store, fanoutTimeout time.Duration) *Broadcaster {
	if fanoutTimeout <= 0 {
		fanoutTimeout = DefaultFanoutTimeout
	}
	return &Broadcaster{
		store:     store,
		timeout:   fanoutTimeout,
		logger:    logx.Component("broadcaster"),
		observers: make(map[Observer]struct{}),
	}
}

// AddObserver registers o. Observers must be comparable.
func (b *Broadcaster) AddObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[o] = struct{}{}
}

func (b *Broadcaster) RemoveObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, o)
}

func (b *Broadcaster) notifyObservers(msg protocol.ChatMessage) {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	for _, o := range observers {
		o.Observe(msg)
	}
}

// Publish records msg in the history and delivers it to every peer except
// exclude. It returns the number of peers reached.
func (b *Broadcaster) Publish(ctx context.Context, msg protocol.ChatMessage, exclude uuid.UUID) int {
	peers := b.store.Publish(msg, exclude)
	b.notifyObservers(msg)
	return b.Deliver(ctx, peers, []protocol.ChatMessage{msg})
}

// Broadcast delivers msg to every peer except exclude without recording it.
// Join and leave notices go through here.
func (b *Broadcaster) Broadcast(ctx context.Context, msg protocol.ChatMessage, exclude uuid.UUID) int {
	peers := b.store.Connections()
	if exclude != uuid.Nil {
		kept := peers[:0]
		for _, p := range peers {
			if p.User.SessionID != exclude {
				kept = append(kept, p)
			}
		}
		peers = kept
	}
	b.notifyObservers(msg)
	return b.Deliver(ctx, peers, []protocol.ChatMessage{msg})
}

// Announce publishes a server message with no sender to everyone.
func (b *Broadcaster) Announce(ctx context.Context, text string) int {
	return b.Publish(ctx, protocol.NewSystemMessage(text), uuid.Nil)
}

// Replay sends the whole history to one connection as a single notification.
func (b *Broadcaster) Replay(ctx context.Context, conn transport.Conn, history []protocol.ChatMessage) error {
	if history == nil {
		history = []protocol.ChatMessage{}
	}
	return b.send(ctx, conn, history)
}

// Deliver writes msgs to each peer in order. A peer that cannot be reached in
// time is logged and skipped. It returns the number of successful deliveries.
func (b *Broadcaster) Deliver(ctx context.Context, peers []session.Peer, msgs []protocol.ChatMessage) int {
	delivered := 0
	for _, p := range peers {
		if err := b.send(ctx, p.Conn, msgs); err != nil {
			b.logger.Warn().Err(err).
				Str("session_id", p.User.SessionID.String()).
				Str("name", p.User.Name).
				Msg("Failed to deliver notification, skipping peer")
			continue
		}
		delivered++
	}

	b.logger.Debug().
		Int("recipients", len(peers)).
		Int("delivered", delivered).
		Int("messages", len(msgs)).
		Msg("Fan-out finished")
	return delivered
}

func (b *Broadcaster) send(ctx context.Context, conn transport.Conn, msgs []protocol.ChatMessage) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	stream, err := conn.OpenUniStream(ctx)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		transport.SetWriteDeadline(stream, deadline)
	}

	if err := protocol.WriteNotification(stream, protocol.NotificationNewMessage, msgs); err != nil {
		return err
	}
	return stream.Close()
}
