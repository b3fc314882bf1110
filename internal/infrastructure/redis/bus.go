package redis

import (
	"context"
	"errors"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

// DefaultChannel carries encoded data_update envelopes.
const DefaultChannel = "algorithm:game"

// Bus fans snapshot envelopes out over Redis pub/sub so every relay
// instance sees every update.
type Bus struct {
	client  *goRedis.Client
	channel string
	logger  *zap.Logger
}

func NewBus(client *goRedis.Client, channel string, logger *zap.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

// Publish sends an already encoded envelope.
func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	if b == nil || b.client == nil {
		return errors.New("redis bus not configured")
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// PublishSnapshot announces an accepted snapshot as a data_update event.
func (b *Bus) PublishSnapshot(ctx context.Context, game *domain.Game) error {
	payload, err := domain.EncodeEvent(domain.GameUpdateEvent{Game: game})
	if err != nil {
		return err
	}
	return b.Publish(ctx, payload)
}

// Subscribe calls handle for every message until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, handle func(payload []byte)) error {
	if b == nil || b.client == nil {
		return errors.New("redis bus not configured")
	}
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("subscribed to game bus", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}
