package broadcast

import (
	"context"
	"sync"

	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/metrics"
)

// Hub keeps track of connected clients and fans out messages to them. A client
// whose send buffer is full is dropped rather than allowed to block the others.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		clients:    map[*Client]struct{}{},
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, after which
// every remaining client is closed.
func (h *Hub) Run(ctx context.Context) {
	logger := logging.GetLoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("clients", h.ClientCount()).Msg("websocket hub shutting down")
			close(h.done)
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			logger.Debug().Uint64("client", c.id).Msg("websocket client connected")
		case c := <-h.unregister:
			h.remove(c)
			logger.Debug().Uint64("client", c.id).Msg("websocket client disconnected")
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// Broadcast queues message for every connected client. It never blocks; if the
// hub is busy the message is discarded since a newer one will follow.
func (h *Hub) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.remove(c)
		metrics.ClientsDropped.Inc()
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.WebSocketClients.Dec()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		metrics.WebSocketClients.Dec()
	}
}
