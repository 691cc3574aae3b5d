package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PropertyStatusCache keeps serialized property-status responses in Redis so
// the hot status endpoint does not hit Postgres on every poll. Reservation and
// cancellation writes invalidate the property's key.
//
// A nil *PropertyStatusCache is a no-op, so the service runs without Redis.
type PropertyStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

const defaultTTL = 60 * time.Second

func NewPropertyStatusCache(client *redis.Client) *PropertyStatusCache {
	return &PropertyStatusCache{client: client, ttl: defaultTTL}
}

func key(propertyID uint) string {
	return fmt.Sprintf("property_status:%d", propertyID)
}

// Get returns the cached payload, or redis.Nil via found=false on a miss.
func (c *PropertyStatusCache) Get(ctx context.Context, propertyID uint) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}

	val, err := c.client.Get(ctx, key(propertyID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *PropertyStatusCache) Set(ctx context.Context, propertyID uint, payload []byte) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, key(propertyID), payload, c.ttl).Err()
}

func (c *PropertyStatusCache) Invalidate(ctx context.Context, propertyID uint) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key(propertyID)).Err()
}
