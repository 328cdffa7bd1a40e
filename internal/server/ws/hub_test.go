package ws

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
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func startHub(t *testing.T, cfg Config) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil, nil, cfg)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub, srv := startHub(t, Config{Mode: "FULL"})

	conn := dial(t, srv.URL)
	hello := readJSON(t, conn)
	assert.Equal(t, "bot_status", hello["type"])
	assert.Equal(t, "full", hello["payload"].(map[string]any)["mode"])

	assert.False(t, hub.Relaying())
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.True(t, hub.Broadcast(ChannelOpportunity, []byte(`{"type":"opportunity"}`)))
	got := readJSON(t, conn)
	assert.Equal(t, "opportunity", got["type"])
}

func TestHub_ReplaysLastEvent(t *testing.T) {
	hub, srv := startHub(t, Config{})

	require.True(t, hub.Broadcast(ChannelCatalogue, []byte(`{"type":"catalogue_rebuilt"}`)))
	// Give Run a moment to record the event before anyone connects.
	time.Sleep(50 * time.Millisecond)

	conn := dial(t, srv.URL)
	assert.Equal(t, "bot_status", readJSON(t, conn)["type"])
	assert.Equal(t, "catalogue_rebuilt", readJSON(t, conn)["type"])
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	_, srv := startHub(t, Config{AllowedOrigins: []string{"https://dash.example"}})

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"),
		http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubscriptions(t *testing.T) {
	s := newSubscriptions("ch:cat*")
	assert.True(t, s.matches(ChannelCatalogue))
	assert.False(t, s.matches(ChannelOpportunity))

	s.add(ChannelOpportunity)
	assert.True(t, s.matches(ChannelOpportunity))

	s.remove(ChannelOpportunity, "ch:cat*")
	assert.False(t, s.matches(ChannelOpportunity))
	assert.False(t, s.matches(ChannelCatalogue))
}

func TestClient_Apply(t *testing.T) {
	c := &client{subs: newSubscriptions()}
	c.apply(control{Action: "subscribe", Channels: []string{ChannelOpportunity}})
	assert.True(t, c.subs.matches(ChannelOpportunity))
	c.apply(control{Action: "unsubscribe", Channels: []string{ChannelOpportunity}})
	assert.False(t, c.subs.matches(ChannelOpportunity))
}
