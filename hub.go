/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/Seednode/killerpool/games/killerpool"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Client struct {
	conn *websocket.Conn
	send chan killerpool.Snapshot
}

// Hub pushes engine snapshots to connected scoreboards. The engine is
// never asked to notify anyone; handlers call notify after a change.
type Hub struct {
	engine *killerpool.Engine

	clients  map[*Client]bool
	register chan *Client
	unreg    chan *Client
	changed  chan struct{}
	done     chan struct{}

	mu sync.Mutex
}

func newHub(engine *killerpool.Engine) *Hub {
	return &Hub{
		engine:   engine,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

			c.send <- h.engine.Snapshot()

		case c := <-h.unreg:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case <-h.changed:
			h.broadcast(h.engine.Snapshot())
		}
	}
}

// notify coalesces change signals; the hub reads the engine once per
// wakeup, so a burst of changes sends only the latest state.
func (h *Hub) notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

func (h *Hub) broadcast(s killerpool.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- s:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("upgrade error: %v", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan killerpool.Snapshot, 8),
		}

		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: Scoreboard connected from %s (%d watching)", realIP(r), h.count())

		go client.writePump()
		client.readPump(h)
	}
}

// readPump only exists to notice the peer going away.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for s := range c.send {
		if err := c.conn.WriteJSON(s); err != nil {
			return
		}
	}
}
