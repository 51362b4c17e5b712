package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const feedChannel = "feed:events"

// RedisHub is a Hub whose broadcasts also reach subscribers connected to other server
// instances through a Redis pub/sub channel.
type RedisHub struct {
	*Hub

	redisClient *redis.Client
	serverID    string
}

type RedisMessage struct {
	FromServerID string `json:"fromServerId"`
	Payload      []byte `json:"payload"`
}

func NewRedisHub(redisClient *redis.Client, serverID string) *RedisHub {
	return &RedisHub{
		Hub:         NewHub(),
		redisClient: redisClient,
		serverID:    serverID,
	}
}

func (h *RedisHub) Run(ctx context.Context) {
	pubsub := h.redisClient.Subscribe(ctx, feedChannel)
	defer pubsub.Close()

	go h.subscribeRedis(ctx, pubsub)

	h.Hub.Run(ctx)
}

// Broadcast delivers locally and publishes for the other instances.
func (h *RedisHub) Broadcast(message []byte) {
	h.Hub.Broadcast(message)
	h.publishToRedis(message)
}

func (h *RedisHub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()

	slog.Info("redis feed subscriber started", "server_id", h.serverID)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			payload, ok := h.decode(msg.Payload)
			if !ok {
				continue
			}
			h.Hub.Broadcast(payload)
		}
	}
}

// decode returns the payload of a message published by another instance.
func (h *RedisHub) decode(raw string) ([]byte, bool) {
	var redisMsg RedisMessage
	if err := json.Unmarshal([]byte(raw), &redisMsg); err != nil {
		slog.Warn("error unmarshaling redis message", "error", err)
		return nil, false
	}
	if redisMsg.FromServerID == h.serverID {
		return nil, false
	}
	return redisMsg.Payload, true
}

func (h *RedisHub) publishToRedis(message []byte) {
	msgBytes, err := json.Marshal(RedisMessage{
		FromServerID: h.serverID,
		Payload:      message,
	})
	if err != nil {
		slog.Error("error marshaling redis message", "error", err)
		return
	}

	if err := h.redisClient.Publish(context.Background(), feedChannel, msgBytes).Err(); err != nil {
		slog.Error("error publishing to redis", "error", err)
	}
}
