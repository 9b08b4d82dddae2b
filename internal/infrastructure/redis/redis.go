package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Client *redis.Client

	// EventTTL bounds how stale the status snapshot may get; writes against
	// a reactivated event self-heal once the entry expires.
	EventTTL time.Duration
}

func New(addr, pass string, db int, eventTTL time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	if eventTTL <= 0 {
		eventTTL = 10 * time.Minute
	}
	return &Cache{Client: rdb, EventTTL: eventTTL}
}

func eventKey(eventID uuid.UUID) string {
	return "event:status:" + eventID.String()
}

func (c *Cache) GetEventStatus(ctx context.Context, eventID uuid.UUID) (domain.EventStatus, error) {
	val, err := c.Client.Get(ctx, eventKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrCacheMiss
		}
		return "", err
	}
	return domain.EventStatus(val), nil
}

func (c *Cache) SetEventStatus(ctx context.Context, eventID uuid.UUID, status domain.EventStatus) error {
	return c.Client.Set(ctx, eventKey(eventID), string(status), c.EventTTL).Err()
}

func (c *Cache) InvalidateEvent(ctx context.Context, eventID uuid.UUID) error {
	return c.Client.Del(ctx, eventKey(eventID)).Err()
}

// AllowRequest: simple fixed window rate limit
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
