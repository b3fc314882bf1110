package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/repository"
)

type snapshotCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewSnapshotCache creates a Redis-backed snapshot cache.
func NewSnapshotCache(client *redislib.Client, ttl time.Duration) repository.SnapshotCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &snapshotCache{
		client: client,
		prefix: "game:",
		ttl:    ttl,
	}
}

func (c *snapshotCache) Get(ctx context.Context, slot repository.Slot) (*domain.Game, error) {
	result, err := c.client.Get(ctx, c.key(slot)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrGameNotFound
		}
		return nil, err
	}

	var game domain.Game
	if err := json.Unmarshal(result, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *snapshotCache) Set(ctx context.Context, slot repository.Slot, game *domain.Game) error {
	if game == nil || !game.Valid() {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(slot), payload, c.ttl).Err()
}

func (c *snapshotCache) Delete(ctx context.Context, slot repository.Slot) error {
	return c.client.Del(ctx, c.key(slot)).Err()
}

func (c *snapshotCache) key(slot repository.Slot) string {
	return fmt.Sprintf("%s%s", c.prefix, slot)
}
