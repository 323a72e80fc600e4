package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quichat/internal/app/protocol"
	"quichat/internal/app/user"
)

const waitFor = 2 * time.Second

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub, cancel
}

func serve(t *testing.T, hub *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, r.RemoteAddr)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubFansOutEvents(t *testing.T) {
	hub, _ := startHub(t)
	url := serve(t, hub)

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, waitFor, 10*time.Millisecond)

	alice := user.User{SessionID: uuid.New(), Name: "alice"}
	hub.Observe(protocol.NewUserMessage("hi", alice))
	hub.Observe(protocol.NewSystemMessage("bob has entered the chat!"))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))

		var first Event
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, "hi", first.Text)
		require.NotNil(t, first.Sender)
		assert.Equal(t, alice, *first.Sender)
		assert.False(t, first.Time.IsZero())

		var second Event
		require.NoError(t, conn.ReadJSON(&second))
		assert.Equal(t, "bob has entered the chat!", second.Text)
		assert.Nil(t, second.Sender)
	}
}

func TestSubscriberLeaves(t *testing.T) {
	hub, _ := startHub(t)
	url := serve(t, hub)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, waitFor, 10*time.Millisecond)
}

func TestStopClosesSubscribers(t *testing.T) {
	hub, cancel := startHub(t)
	url := serve(t, hub)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, waitFor, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)

	<-hub.done
	assert.False(t, hub.Register(NewSubscriber(hub, nil, "late")))
	assert.Zero(t, hub.Len())
}

func TestServeAfterStopClosesConnection(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()
	<-hub.done

	served := make(chan bool, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		served <- hub.Serve(conn, r.RemoteAddr)
	}))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	select {
	case ok := <-served:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("Serve did not return for a stopped hub")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection was left open")
	}
	assert.Zero(t, hub.Len())
}

func TestObserveNeverBlocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventBuffer+10; i++ {
			hub.Observe(protocol.NewSystemMessage("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Observe blocked without a running hub")
	}
	assert.Len(t, hub.events, eventBuffer)
}

func TestObserveCopiesSender(t *testing.T) {
	hub := NewHub()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hub.now = func() time.Time { return fixed }

	u := user.User{SessionID: uuid.New(), Name: "carol"}
	msg := protocol.NewUserMessage("x", u)
	hub.Observe(msg)
	msg.Sender.Name = "mallory"

	ev := <-hub.events
	assert.Equal(t, "carol", ev.Sender.Name)
	assert.Equal(t, fixed, ev.Time)
}
