// Package feed streams bot reports to websocket viewers as JSON.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/gravbot/executor/bot"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 1 << 10
)

// Message is the envelope written to every viewer.
type Message struct {
	Type   string       `json:"type"`
	Search *SearchEvent `json:"search,omitempty"`
	World  *WorldEvent  `json:"world,omitempty"`
}

type SearchEvent struct {
	ID         string     `json:"id"`
	Time       time.Time  `json:"time"`
	OwnID      int        `json:"own_id"`
	TargetID   int        `json:"target_id"`
	Mode       string     `json:"mode"`
	Version    uint64     `json:"version"`
	Self       [2]float64 `json:"self"`
	Target     [2]float64 `json:"target"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	Velocity   float64    `json:"velocity,omitempty"`
	Degrees    float64    `json:"degrees,omitempty"`
	HitID      int        `json:"hit_id,omitempty"`
	Candidates int        `json:"candidates"`
	Evaluated  int        `json:"evaluated"`
	DurationMs int64      `json:"duration_ms"`
}

type WorldEvent struct {
	Time    time.Time `json:"time"`
	Event   string    `json:"event"`
	Version uint64    `json:"version"`
	OwnID   int       `json:"own_id"`
	Players int       `json:"players"`
	Planets int       `json:"planets"`
	Energy  float64   `json:"energy"`
	Ignored []int     `json:"ignored"`
}

func SearchFromReport(rep bot.SearchReport) *SearchEvent {
	ev := &SearchEvent{
		ID:         rep.ID.String(),
		Time:       rep.Time,
		OwnID:      rep.OwnID,
		TargetID:   rep.TargetID,
		Mode:       rep.Mode.String(),
		Version:    rep.Version,
		Self:       rep.Self,
		Target:     rep.Target,
		Status:     rep.Result.Status.String(),
		Candidates: rep.Result.Stats.Candidates,
		Evaluated:  rep.Result.Stats.Evaluated,
		DurationMs: rep.Result.Stats.Duration.Milliseconds(),
	}
	if rep.Result.Reason != 0 {
		ev.Reason = rep.Result.Reason.String()
	}
	if rep.Result.Shot.Velocity != 0 {
		ev.Velocity = rep.Result.Shot.Velocity
		ev.Degrees = rep.Degrees
		ev.HitID = rep.Result.HitID
	}
	return ev
}

func WorldFromReport(rep bot.WorldReport) *WorldEvent {
	ignored := rep.Ignored
	if ignored == nil {
		ignored = []int{}
	}
	return &WorldEvent{
		Time:    rep.Time,
		Event:   rep.Event.String(),
		Version: rep.Version,
		OwnID:   rep.OwnID,
		Players: rep.Players,
		Planets: rep.Planets,
		Energy:  rep.Energy,
		Ignored: ignored,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans reports out to connected viewers. It is a bot.Observer and an
// http.Handler. A viewer whose buffer is full misses messages rather than
// stalling the bot.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	buffer   int

	mu      sync.Mutex
	clients map[*client]struct{}

	dropped atomic.Int64
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger.With("component", "feed"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		buffer:  buffer,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) RecordSearch(rep bot.SearchReport) {
	h.broadcast(Message{Type: "search", Search: SearchFromReport(rep)})
}

func (h *Hub) RecordWorld(rep bot.WorldReport) {
	h.broadcast(Message{Type: "world", World: WorldFromReport(rep)})
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal feed message", "type", msg.Type, "error", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("viewer connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(c, done)
	h.readLoop(c)
	close(done)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	conn.Close()
	h.logger.Info("viewer disconnected", "remote", r.RemoteAddr)
}

// readLoop discards viewer input; it exists to notice closes and pongs.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// Run serves the hub on addr at /ws until ctx is done.
func (h *Hub) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("feed listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Shutdown does not touch hijacked connections.
	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
