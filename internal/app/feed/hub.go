/*
Package feed streams chat traffic to read-only WebSocket observers.

This file defines the Hub, the event loop that owns the set of subscribers. It
registers and drops subscribers and fans every observed chat message out to
them as JSON. A subscriber whose queue is full is dropped rather than slowing
the chat server down.
*/
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quichat/internal/app/protocol"
	"quichat/internal/app/user"
	"quichat/internal/pkg/logx"
)

const (
	// capacity of the hub's inbound event queue.
	eventBuffer = 1024

	// capacity of each subscriber's outbound queue.
	sendBuffer = 256
)

// Event is the JSON document pushed to observers for each chat message.
type Event struct {
	Text   string     `json:"text"`
	Sender *user.User `json:"sender,omitempty"`
	Time   time.Time  `json:"time"`
}

// Hub fans chat messages out to WebSocket subscribers. It implements
// chat.Observer.
type Hub struct {
	// subscribers currently receiving events.
	subscribers map[*Subscriber]struct{}

	// events waiting to be encoded and fanned out.
	events chan Event

	register   chan *Subscriber
	unregister chan *Subscriber

	// closed once Run returns.
	done chan struct{}

	// mu protects access to the subscribers map.
	mu sync.RWMutex

	logger zerolog.Logger
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		events:      make(chan Event, eventBuffer),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		done:        make(chan struct{}),
		logger:      logx.Component("feed"),
		now:         time.Now,
	}
}

// Observe queues msg for every subscriber. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Observe(msg protocol.ChatMessage) {
	ev := Event{Text: msg.Text, Time: h.now().UTC()}
	if msg.Sender != nil {
		sender := *msg.Sender
		ev.Sender = &sender
	}

	select {
	case h.events <- ev:
	default:
		h.logger.Warn().Msg("Feed event queue full, dropping message.")
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Register adds s to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(s *Subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes s and closes its queue. Unknown subscribers are ignored.
func (h *Hub) Unregister(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, after
// closing every subscriber's queue.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for s := range h.subscribers {
			delete(h.subscribers, s)
			close(s.send)
		}
		h.mu.Unlock()
		close(h.done)
		h.logger.Info().Msg("Feed hub stopped.")
	}()

	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s] = struct{}{}
			total := len(h.subscribers)
			h.mu.Unlock()

			s.logger.Info().Int("total_subscribers", total).Msg("Feed subscriber joined.")

		case s := <-h.unregister:
			h.remove(s, "Feed subscriber left.")

		case ev := <-h.events:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error().Err(err).Msg("Error marshaling feed event.")
				continue
			}

			var slow []*Subscriber
			h.mu.RLock()
			for s := range h.subscribers {
				select {
				case s.send <- payload:
				default:
					slow = append(slow, s)
				}
			}
			h.mu.RUnlock()

			for _, s := range slow {
				h.remove(s, "Feed subscriber queue full, dropping subscriber.")
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(s *Subscriber, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; !ok {
		return
	}
	delete(h.subscribers, s)
	close(s.send)
	s.logger.Info().Int("total_subscribers", len(h.subscribers)).Msg(reason)
}
