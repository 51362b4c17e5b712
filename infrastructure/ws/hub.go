package ws

import (
	"context"
	"log/slog"
	"sync"
)

// Hub fans feed events out to every websocket connected to this process.
type Hub struct {
	clients    map[string]*UserClient
	broadcast  chan []byte
	register   chan *UserClient
	unregister chan *UserClient
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*UserClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *UserClient),
		unregister: make(chan *UserClient),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.broadcastLocal(message)
		}
	}
}

// Broadcast, RegisterClient and UnregisterClient become no-ops once Run has returned.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(client *UserClient) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) UnregisterClient(client *UserClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) add(client *UserClient) {
	h.mu.Lock()
	h.clients[client.Id] = client
	h.mu.Unlock()
	slog.Debug("feed subscriber connected", "user_id", client.UserId, "client_id", client.Id)
}

func (h *Hub) remove(client *UserClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.Id]; ok {
		delete(h.clients, client.Id)
		close(client.send)
		slog.Debug("feed subscriber disconnected", "user_id", client.UserId, "client_id", client.Id)
	}
}

// broadcastLocal drops subscribers whose send buffer is full instead of blocking the hub.
func (h *Hub) broadcastLocal(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, id)
			slog.Warn("dropping slow feed subscriber", "user_id", client.UserId)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}
