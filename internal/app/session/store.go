/*
Package session holds the shared state of the chat server: who is logged in,
the connection each peer is reachable on, and the chat history.

A single Store is built by the server and handed to every connection. All
access goes through its methods; snapshots are copies, so callers never do
network I/O while a Store lock is held.

Lock order is history first, then tables. Publish and Register both follow it,
which orders every registration against every published message: a new peer
finds each message either in the history returned by Register or among the
recipients of a later Publish, never both and never neither.
*/
package session

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"quichat/internal/app/protocol"
	"quichat/internal/app/user"
	"quichat/internal/pkg/errs"
	"quichat/internal/pkg/randx"
	"quichat/internal/transport"
)

// maxIDAttempts bounds the retries when a generated session id is already live.
const maxIDAttempts = 8

// Peer is a logged-in user together with its connection.
type Peer struct {
	User user.User
	Conn transport.Conn
}

// Registration is the result of a successful Register.
type Registration struct {
	User user.User

	// History is the chat history as of the registration point.
	History []protocol.ChatMessage
}

type entry struct {
	peer Peer
	seq  uint64
}

// Store is safe for concurrent use.
type Store struct {
	historyMu sync.RWMutex
	history   []protocol.ChatMessage

	mu      sync.Mutex
	peers   map[uuid.UUID]entry
	names   map[string]uuid.UUID
	nextSeq uint64

	newID func() (uuid.UUID, error)
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the session id source.
func WithIDGenerator(fn func() (uuid.UUID, error)) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		peers: make(map[uuid.UUID]entry),
		names: make(map[string]uuid.UUID),
		newID: randx.SessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeName trims the surrounding whitespace that is ignored when names are compared.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Register logs in name on conn. The name check and both inserts happen in one
// critical section, so of two concurrent registrations of the same name
// exactly one succeeds.
func (s *Store) Register(name string, conn transport.Conn) (Registration, *errs.CustomError) {
	name = NormalizeName(name)
	if name == "" {
		return Registration{}, errs.NewError(errs.ErrInvalidName)
	}

	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.names[name]; taken {
		return Registration{}, errs.NewError(errs.ErrNameTaken)
	}

	id, err := s.allocateID()
	if err != nil {
		return Registration{}, errs.NewError(errs.ErrUnknown, err)
	}

	u := user.User{SessionID: id, Name: name}
	s.nextSeq++
	s.peers[id] = entry{peer: Peer{User: u, Conn: conn}, seq: s.nextSeq}
	s.names[name] = id

	return Registration{User: u, History: slices.Clone(s.history)}, nil
}

// allocateID must be called with s.mu held.
func (s *Store) allocateID() (uuid.UUID, error) {
	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			lastErr = err
			continue
		}
		if _, live := s.peers[id]; !live && id != uuid.Nil {
			return id, nil
		}
	}
	if lastErr == nil {
		lastErr = errIDExhausted
	}
	return uuid.Nil, lastErr
}

// Unregister removes the peer and its connection. It reports true only for
// the call that actually removed them.
func (s *Store) Unregister(id uuid.UUID) (user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.peers[id]
	if !ok {
		return user.User{}, false
	}
	delete(s.peers, id)
	delete(s.names, e.peer.User.Name)
	return e.peer.User, true
}

// Lookup returns the user registered under id.
func (s *Store) Lookup(id uuid.UUID) (user.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.peers[id]
	return e.peer.User, ok
}

// Len returns the number of logged-in peers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Connections returns a point-in-time copy of all peers in registration order.
func (s *Store) Connections() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(uuid.Nil)
}

// Users is Connections without the connection handles.
func (s *Store) Users() []user.User {
	peers := s.Connections()
	users := make([]user.User, len(peers))
	for i, p := range peers {
		users[i] = p.User
	}
	return users
}

func (s *Store) snapshotLocked(exclude uuid.UUID) []Peer {
	entries := make([]entry, 0, len(s.peers))
	for id, e := range s.peers {
		if id == exclude {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	peers := make([]Peer, len(entries))
	for i, e := range entries {
		peers[i] = e.peer
	}
	return peers
}

// AppendHistory adds msg to the history without selecting recipients.
func (s *Store) AppendHistory(msg protocol.ChatMessage) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, msg)
}

// History returns a copy of the history in insertion order.
func (s *Store) History() []protocol.ChatMessage {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	return slices.Clone(s.history)
}

// Publish appends msg to the history and returns the peers that must receive
// it, skipping exclude (uuid.Nil excludes nobody). Both happen under the
// history lock, so the history and the set of recipients describe the same
// event.
func (s *Store) Publish(msg protocol.ChatMessage, exclude uuid.UUID) []Peer {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append(s.history, msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(exclude)
}
