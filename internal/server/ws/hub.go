// Package ws streams opportunity and catalogue events to browser clients.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Channels carried by the hub.
const (
	ChannelOpportunity = "ch:opportunity"
	ChannelCatalogue   = "ch:catalogue"
)

var defaultChannels = []string{ChannelOpportunity, ChannelCatalogue}

// queueSize bounds both the hub's inbound event queue and each client's
// outbound queue.
const queueSize = 256

// Config carries the metadata sent to clients on connect and the origins
// allowed to open a socket (empty allows any).
type Config struct {
	Mode           string
	StartedAt      time.Time
	AllowedOrigins []string
}

type event struct {
	channel string
	data    []byte
}

// Hub fans events out to connected clients. With a SignalBus it relays the
// bus channels, so events from every bot instance reach every dashboard;
// without one, events arrive through Broadcast. The last event of each
// channel is replayed to new clients.
type Hub struct {
	bus        domain.SignalBus
	upgrader   websocket.Upgrader
	events     chan event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	connected  atomic.Int64
	mode       string
	startedAt  time.Time
	logger     *slog.Logger
}

// NewHub creates a hub. bus may be nil.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		events:     make(chan event, queueSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		mode:       mode,
		startedAt:  startedAt,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Relaying reports whether events reach the hub through the signal bus.
func (h *Hub) Relaying() bool {
	return h.bus != nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Broadcast queues data for channel. It never blocks; a full queue drops
// the event and returns false.
func (h *Hub) Broadcast(channel string, data []byte) bool {
	select {
	case h.events <- event{channel: channel, data: data}:
		return true
	default:
		h.logger.Warn("ws: event queue full, dropping", slog.String("channel", channel))
		return false
	}
}

// Run owns the client set and delivers events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	if h.bus != nil {
		for _, ch := range defaultChannels {
			go h.relay(ctx, ch)
		}
	}

	clients := make(map[*client]struct{})
	last := make(map[string][]byte, len(defaultChannels))
	drop := func(c *client) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			h.connected.Store(int64(len(clients)))
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				drop(c)
			}
			return ctx.Err()

		case c := <-h.register:
			clients[c] = struct{}{}
			h.connected.Store(int64(len(clients)))
			c.enqueue(h.hello())
			for _, ch := range defaultChannels {
				if data, ok := last[ch]; ok && c.subs.matches(ch) {
					c.enqueue(data)
				}
			}
			h.logger.Info("ws: client connected",
				slog.String("remote", c.remote),
				slog.Int("clients", len(clients)),
			)

		case c := <-h.unregister:
			drop(c)
			h.logger.Info("ws: client disconnected",
				slog.String("remote", c.remote),
				slog.Int("clients", len(clients)),
			)

		case ev := <-h.events:
			last[ev.channel] = ev.data
			for c := range clients {
				if c.subs.matches(ev.channel) && !c.enqueue(ev.data) {
					h.logger.Warn("ws: client too slow, dropping event",
						slog.String("remote", c.remote),
						slog.String("channel", ev.channel),
					)
				}
			}
		}
	}
}

// relay forwards one bus channel into the hub.
func (h *Hub) relay(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.ErrorContext(ctx, "ws: bus subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.WarnContext(ctx, "ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.events <- event{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and hands the client to Run.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, r.RemoteAddr)
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// leave unregisters c unless the hub has already stopped.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) hello() []byte {
	return mustEnvelope("bot_status", map[string]any{
		"mode":           h.mode,
		"uptime_seconds": max(int64(time.Since(h.startedAt).Seconds()), 0),
		"channels":       defaultChannels,
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
