package relay

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/localmind/backend/internal/cache"
	"github.com/localmind/backend/internal/logger"
	"go.uber.org/zap"
)

const (
	stopChannel    = "localmind:generation:stop"
	ownerKeyPrefix = "localmind:generation:owner:"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type stopMessage struct {
	GenerationID string `json:"generationId"`
	OwnerID      string `json:"ownerId"`
}

// RedisCoordinator implements Coordinator with Redis keys for ownership and
// pub/sub for stop requests.
type RedisCoordinator struct {
	redis *cache.RedisClient
}

// NewRedisCoordinator creates a coordinator on rc
func NewRedisCoordinator(rc *cache.RedisClient) *RedisCoordinator {
	return &RedisCoordinator{redis: rc}
}

func (c *RedisCoordinator) Announce(ctx context.Context, generationID, ownerID string, ttl time.Duration) error {
	return c.redis.SetEx(ctx, ownerKeyPrefix+generationID, ownerID, ttl)
}

func (c *RedisCoordinator) Forget(ctx context.Context, generationID string) error {
	return c.redis.Del(ctx, ownerKeyPrefix+generationID)
}

func (c *RedisCoordinator) Owner(ctx context.Context, generationID string) (string, error) {
	owner, err := c.redis.Get(ctx, ownerKeyPrefix+generationID)
	if cache.IsNil(err) {
		return "", ErrGenerationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup generation owner: %w", err)
	}
	return owner, nil
}

func (c *RedisCoordinator) PublishStop(ctx context.Context, generationID, ownerID string) error {
	payload, err := json.Marshal(stopMessage{GenerationID: generationID, OwnerID: ownerID})
	if err != nil {
		return err
	}
	return c.redis.Publish(ctx, stopChannel, payload)
}

// Listen delivers stop requests to the registry until ctx is done.
// Returns once the subscription is established so no stop request published afterwards is missed.
func (c *RedisCoordinator) Listen(ctx context.Context, registry *Registry) error {
	sub := c.redis.Subscribe(ctx, stopChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", stopChannel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var stop stopMessage
				if err := json.Unmarshal([]byte(msg.Payload), &stop); err != nil {
					logger.Log.Warn("Ignoring malformed stop message", zap.Error(err))
					continue
				}
				registry.CancelLocal(stop.GenerationID, stop.OwnerID)
			}
		}
	}()

	return nil
}
