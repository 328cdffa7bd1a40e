package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// subscriptions is a client's channel filter. A name ending in "*" matches
// every channel with that prefix.
type subscriptions struct {
	mu    sync.RWMutex
	exact map[string]struct{}
	globs []string
}

func newSubscriptions(channels ...string) *subscriptions {
	s := &subscriptions{exact: make(map[string]struct{})}
	s.add(channels...)
	return s
}

func (s *subscriptions) add(channels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if prefix, ok := strings.CutSuffix(ch, "*"); ok {
			s.globs = append(s.globs, prefix)
		} else {
			s.exact[ch] = struct{}{}
		}
	}
}

func (s *subscriptions) remove(channels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if prefix, ok := strings.CutSuffix(ch, "*"); ok {
			kept := s.globs[:0]
			for _, g := range s.globs {
				if g != prefix {
					kept = append(kept, g)
				}
			}
			s.globs = kept
		} else {
			delete(s.exact, ch)
		}
	}
}

func (s *subscriptions) matches(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.exact[channel]; ok {
		return true
	}
	for _, g := range s.globs {
		if strings.HasPrefix(channel, g) {
			return true
		}
	}
	return false
}

// control is what a client may send: {"action":"subscribe","channels":[...]}.
type control struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	subs   *subscriptions
	remote string
}

func newClient(h *Hub, conn *websocket.Conn, remote string) *client {
	return &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, queueSize),
		subs:   newSubscriptions(defaultChannels...),
		remote: remote,
	}
}

// enqueue is called only from the hub's Run goroutine, which also owns
// closing send.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) apply(msg control) {
	switch msg.Action {
	case "subscribe":
		c.subs.add(msg.Channels...)
	case "unsubscribe":
		c.subs.remove(msg.Channels...)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close",
					slog.String("remote", c.remote),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		var msg control
		if json.Unmarshal(data, &msg) == nil {
			c.apply(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustEnvelope(kind string, payload any) []byte {
	data, err := json.Marshal(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		return []byte(`{"type":"` + kind + `"}`)
	}
	return data
}
