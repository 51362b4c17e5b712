package websocket

import (
	"log/slog"
	"net/http"
	"slices"

	"socialnet/infrastructure/ws"
	deliveryhttp "socialnet/internal/delivery/http"

	"github.com/gorilla/websocket"
)

// FeedHandler streams feed events to authenticated subscribers. It must run behind
// AuthMiddleware.Authenticate.
type FeedHandler struct {
	hub      ws.IHub
	upgrader websocket.Upgrader
}

func NewFeedHandler(hub ws.IHub, allowedOrigins []string) *FeedHandler {
	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// GET /ws/feed
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	user, ok := deliveryhttp.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "not authorized, no token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Warn("websocket upgrade failed", "userId", user.Id, "error", err)
		return
	}

	client := ws.NewClient(user.Id, h.hub, conn)
	h.hub.RegisterClient(client)
	slog.Debug("feed subscriber connected", "userId", user.Id, "clientId", client.Id)

	go client.WritePump()
	client.ReadPump()
}
