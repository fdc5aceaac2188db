package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ardalan-sia/trafficsim/pkg/simulation"
)

// Format is the wire encoding a client asked for.
type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

func parseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", JSON:
		return JSON, nil
	case MsgPack:
		return MsgPack, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Frame is one published snapshot.
type Frame struct {
	ID       string              `json:"id" msgpack:"id"`
	Snapshot simulation.Snapshot `json:"snapshot" msgpack:"snapshot"`
}

func (f *Frame) encode(format Format) ([]byte, int, error) {
	if format == MsgPack {
		b, err := msgpack.Marshal(f)
		return b, websocket.BinaryMessage, err
	}
	b, err := json.Marshal(f)
	return b, websocket.TextMessage, err
}

type message struct {
	kind int
	data []byte
}

type client struct {
	id     string
	conn   *websocket.Conn
	format Format
	send   chan message
}

// Hub fans snapshots out to websocket clients. Slow clients are dropped
// instead of holding up the simulation.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan *Frame
	done       chan struct{}

	mu     sync.RWMutex
	latest *Frame

	lg *slog.Logger
}

func NewHub(lg *slog.Logger) *Hub {
	if lg == nil {
		lg = slog.Default()
	}
	return &Hub{
		clients:    map[*client]bool{},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *Frame, 16),
		done:       make(chan struct{}),
		lg:         lg.With(slog.String("component", "stream")),
	}
}

// Publish hands a snapshot to the hub. It never blocks; when the hub is
// behind the frame is only kept as the latest one.
func (h *Hub) Publish(snap simulation.Snapshot) {
	f := &Frame{ID: uuid.NewString(), Snapshot: snap}
	h.mu.Lock()
	h.latest = f
	h.mu.Unlock()
	select {
	case h.broadcast <- f:
	default:
		h.lg.Warn("broadcast queue full, frame not pushed", slog.Int("tick", snap.Tick))
	}
}

// Latest returns the most recent frame, or nil before the first Publish.
func (h *Hub) Latest() *Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.lg.Info("client connected", slog.String("client", c.id), slog.String("format", string(c.format)))
			if f := h.Latest(); f != nil {
				h.deliver(c, f, map[Format]message{})
			}
		case c := <-h.unregister:
			h.drop(c)
		case f := <-h.broadcast:
			cache := map[Format]message{}
			for c := range h.clients {
				h.deliver(c, f, cache)
			}
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) deliver(c *client, f *Frame, cache map[Format]message) {
	msg, ok := cache[c.format]
	if !ok {
		data, kind, err := f.encode(c.format)
		if err != nil {
			h.lg.Error("encode frame", slog.String("format", string(c.format)), slog.Any("err", err))
			return
		}
		msg = message{kind: kind, data: data}
		cache[c.format] = msg
	}
	select {
	case c.send <- msg:
	default:
		h.lg.Warn("client too slow, dropping", slog.String("client", c.id))
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
		h.lg.Info("client disconnected", slog.String("client", c.id))
	}
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (c *client) reader(h *Hub) {
	defer func() {
		h.leave(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writer() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
			break
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}
