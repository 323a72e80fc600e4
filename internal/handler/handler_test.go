package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quichat/internal/app/chat"
	"quichat/internal/app/feed"
	"quichat/internal/app/protocol"
	"quichat/internal/app/session"
	"quichat/internal/configs"
	"quichat/internal/pkg/errs"
	"quichat/internal/testutil/memconn"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	deps   *AppDeps
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	cfg := configs.Default()
	srv := chat.NewServer(session.NewStore(), chat.OptionsFromConfig(cfg))
	hub := feed.NewHub()
	srv.Broadcaster().AddObserver(hub)
	go hub.Run(ctx)

	deps := &AppDeps{Config: cfg, Server: srv, Feed: hub}
	ts := httptest.NewServer(Router(ctx, deps))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return &testEnv{deps: deps, server: ts}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

// register logs name in directly and returns the client end of its connection.
func (e *testEnv) register(t *testing.T, name string) *memconn.Conn {
	t.Helper()
	client, server := memconn.Pipe()
	_, cerr := e.deps.Server.Store().Register(name, server)
	require.Nil(t, cerr)
	return client
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	status, body := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, body.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, float64(1), data["peers"])
}

func TestPeersAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	env.deps.Server.Store().AppendHistory(protocol.NewSystemMessage("hello"))

	_, body := env.do(t, http.MethodGet, "/api/peers", "", "")
	var peers struct {
		Peers []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"peers"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &peers))
	require.Len(t, peers.Peers, 2)
	assert.Equal(t, "alice", peers.Peers[0].Name)
	assert.Equal(t, "bob", peers.Peers[1].Name)
	assert.NotEmpty(t, peers.Peers[0].ID)

	_, body = env.do(t, http.MethodGet, "/api/history", "", "")
	var history struct {
		Messages []protocol.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &history))
	assert.Equal(t, []protocol.ChatMessage{protocol.NewSystemMessage("hello")}, history.Messages)
}

func TestAnnounce(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	status, body := env.do(t, http.MethodPost, "/api/announce", "application/json", `{"text":"  maintenance  "}`)
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Delivered int `json:"delivered"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, 1, data.Delivered)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stream, err := alice.AcceptUniStream(ctx)
	require.NoError(t, err)
	_, msgs, err := protocol.ReadNotification(stream)
	require.NoError(t, err)
	assert.Equal(t, []protocol.ChatMessage{protocol.NewSystemMessage("maintenance")}, msgs)

	assert.Equal(t, msgs, env.deps.Server.Store().History())
}

func TestAnnounceValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        int
	}{
		{"blank text", "application/json", `{"text":"   "}`, http.StatusBadRequest, errs.ErrMessageContentEmpty},
		{"too long", "application/json", `{"text":"` + strings.Repeat("x", env.deps.Config.MaxMessageBytes+1) + `"}`, http.StatusBadRequest, errs.ErrMessageContentTooLong},
		{"wrong media type", "text/plain", `{"text":"hi"}`, http.StatusUnsupportedMediaType, errs.ErrUnsupportedMediaType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/announce", tc.contentType, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestFeedReceivesAnnouncements(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.deps.Feed.Len() == 1 }, time.Second, 10*time.Millisecond)

	status, _ := env.do(t, http.MethodPost, "/api/announce", "application/json", `{"text":"hello observers"}`)
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var ev feed.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "hello observers", ev.Text)
	assert.Nil(t, ev.Sender)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", body.Message)
}
