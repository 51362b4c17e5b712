package events

import (
	"context"
	"encoding/json"
	"errors"

	"socialnet/internal/entity"
)

type Publisher interface {
	Publish(ctx context.Context, event entity.FeedEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, entity.FeedEvent) error { return nil }

// MultiPublisher delivers every event to all publishers and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event entity.FeedEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Broadcaster interface {
	Broadcast(message []byte)
}

// BroadcastPublisher pushes events to websocket subscribers through a hub.
type BroadcastPublisher struct {
	Hub Broadcaster
}

func (b BroadcastPublisher) Publish(_ context.Context, event entity.FeedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	b.Hub.Broadcast(payload)
	return nil
}
