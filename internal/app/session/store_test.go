package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quichat/internal/app/protocol"
	"quichat/internal/pkg/errs"
	"quichat/internal/testutil/memconn"
)

func newConn() *memconn.Conn {
	c, _ := memconn.Pipe()
	return c
}

func TestRegister(t *testing.T) {
	s := NewStore()

	reg, err := s.Register("  alice ", newConn())
	require.Nil(t, err)
	assert.Equal(t, "alice", reg.User.Name)
	assert.NotEqual(t, uuid.Nil, reg.User.SessionID)
	assert.Empty(t, reg.History)

	u, ok := s.Lookup(reg.User.SessionID)
	require.True(t, ok)
	assert.Equal(t, reg.User, u)

	t.Run("duplicate after trimming", func(t *testing.T) {
		_, err := s.Register("alice\t", newConn())
		require.NotNil(t, err)
		assert.Equal(t, errs.ErrNameTaken, err.Code)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := s.Register("Alice", newConn())
		assert.Nil(t, err)
	})

	t.Run("blank", func(t *testing.T) {
		_, err := s.Register("   ", newConn())
		require.NotNil(t, err)
		assert.Equal(t, errs.ErrInvalidName, err.Code)
	})

	assert.Equal(t, 2, s.Len())
}

func TestConcurrentRegisterSameName(t *testing.T) {
	s := NewStore()

	const n = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		taken     atomic.Int32
	)
	start := make(chan struct{})
	for j := 0; j < n; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Register("bob", newConn())
			switch {
			case err == nil:
				successes.Add(1)
			case err.Code == errs.ErrNameTaken:
				taken.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), taken.Load())
	assert.Equal(t, 1, s.Len())
}

func TestUnregister(t *testing.T) {
	s := NewStore()
	reg, err := s.Register("carol", newConn())
	require.Nil(t, err)

	u, removed := s.Unregister(reg.User.SessionID)
	assert.True(t, removed)
	assert.Equal(t, "carol", u.Name)

	_, removed = s.Unregister(reg.User.SessionID)
	assert.False(t, removed)

	_, ok := s.Lookup(reg.User.SessionID)
	assert.False(t, ok)
	assert.Empty(t, s.Connections())

	_, err = s.Register("carol", newConn())
	assert.Nil(t, err, "name is free again")
}

func TestConnectionsOrderAndCopy(t *testing.T) {
	s := NewStore()
	var names []string
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("peer-%d", i)
		names = append(names, name)
		_, err := s.Register(name, newConn())
		require.Nil(t, err)
	}

	peers := s.Connections()
	require.Len(t, peers, 10)
	for i, p := range peers {
		assert.Equal(t, names[i], p.User.Name)
		assert.NotNil(t, p.Conn)
	}

	users := s.Users()
	require.Len(t, users, 10)
	assert.Equal(t, peers[3].User, users[3])

	s.Unregister(peers[0].User.SessionID)
	assert.Len(t, peers, 10, "snapshot is not a live view")
	assert.Len(t, s.Connections(), 9)
}

func TestPublish(t *testing.T) {
	s := NewStore()
	alice, err := s.Register("alice", newConn())
	require.Nil(t, err)
	bob, err := s.Register("bob", newConn())
	require.Nil(t, err)

	msg := protocol.NewUserMessage("hi", alice.User)
	recipients := s.Publish(msg, alice.User.SessionID)
	require.Len(t, recipients, 1)
	assert.Equal(t, bob.User, recipients[0].User)

	all := s.Publish(protocol.NewSystemMessage("notice"), uuid.Nil)
	assert.Len(t, all, 2)

	assert.Equal(t, []protocol.ChatMessage{msg, protocol.NewSystemMessage("notice")}, s.History())
}

func TestHistory(t *testing.T) {
	s := NewStore()
	s.AppendHistory(protocol.NewSystemMessage("one"))
	s.AppendHistory(protocol.NewSystemMessage("two"))

	h := s.History()
	require.Len(t, h, 2)
	h[0].Text = "mutated"
	assert.Equal(t, "one", s.History()[0].Text)

	reg, err := s.Register("dave", newConn())
	require.Nil(t, err)
	assert.Equal(t, []string{"one", "two"}, texts(reg.History))
}

// Every published message reaches a concurrently registering peer exactly
// once: through its history snapshot or as a Publish recipient.
func TestRegisterOrderedAgainstPublish(t *testing.T) {
	s := NewStore()
	sender, err := s.Register("sender", newConn())
	require.Nil(t, err)

	const messages = 200
	deliveries := make(map[uuid.UUID][]string)
	var mu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < messages; i++ {
			text := fmt.Sprintf("m%d", i)
			for _, p := range s.Publish(protocol.NewUserMessage(text, sender.User), sender.User.SessionID) {
				mu.Lock()
				deliveries[p.User.SessionID] = append(deliveries[p.User.SessionID], text)
				mu.Unlock()
			}
		}
	}()

	regs := make([]Registration, 0, 20)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			reg, err := s.Register(fmt.Sprintf("joiner-%d", i), newConn())
			if err == nil {
				regs = append(regs, reg)
			}
		}
	}()
	wg.Wait()

	require.Len(t, regs, 20)
	for _, reg := range regs {
		mu.Lock()
		seen := append(texts(reg.History), deliveries[reg.User.SessionID]...)
		mu.Unlock()
		require.Len(t, seen, messages, reg.User.Name)
		for i, text := range seen {
			assert.Equal(t, fmt.Sprintf("m%d", i), text)
		}
	}
}

func TestSessionIDCollisionRetry(t *testing.T) {
	fixed := uuid.MustParse("6f9619ff-8b86-d011-b42d-00cf4fc964ff")
	other := uuid.MustParse("7f9619ff-8b86-d011-b42d-00cf4fc964ff")
	ids := []uuid.UUID{fixed, fixed, uuid.Nil, other}
	var calls int
	s := NewStore(WithIDGenerator(func() (uuid.UUID, error) {
		id := ids[calls]
		calls++
		return id, nil
	}))

	a, err := s.Register("a", newConn())
	require.Nil(t, err)
	assert.Equal(t, fixed, a.User.SessionID)

	b, err := s.Register("b", newConn())
	require.Nil(t, err)
	assert.Equal(t, other, b.User.SessionID)
	assert.Equal(t, 4, calls)
}

func TestSessionIDGeneratorFailure(t *testing.T) {
	s := NewStore(WithIDGenerator(func() (uuid.UUID, error) {
		return uuid.Nil, errors.New("entropy exhausted")
	}))

	_, err := s.Register("a", newConn())
	require.NotNil(t, err)
	assert.Equal(t, errs.ErrUnknown, err.Code)
	assert.Zero(t, s.Len())
}

func texts(msgs []protocol.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}
