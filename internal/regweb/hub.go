package regweb

import (
	"context"
	"sync"
)

// Hub tracks every connected websocket client so they can all be torn down
// together on server shutdown. Per-key fan-out itself is the registry's own
// job (each Client is subscribed through its own wsSubscriber); the hub
// exists purely for connection bookkeeping, separate from message fan-out.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes register/unregister events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
			}
			h.clients = nil
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			log.DebugS(context.Background(), "websocket client connected", "key", c.key)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
			log.DebugS(context.Background(), "websocket client disconnected", "key", c.key)
		}
	}
}

// Stop tears down every connected client and stops Run's loop.
func (h *Hub) Stop() {
	h.cancel()
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
