package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an undispatched entry survives. A stalled
// dispatcher loses stale refresh hints rather than replaying them.
const DefaultTTL = 180 * time.Second

// Cache is the Redis-backed queue. Each message becomes one key named
// "broadcast-<ts>-<suffix>" with a TTL; the dispatcher scans and deletes.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache creates a Redis-backed broadcast queue.
func NewCache(client redis.UniversalClient, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: client,
		ttl:    DefaultTTL,
		logger: logger,
	}
}

// Push stores one message under a fresh broadcast key.
func (c *Cache) Push(ctx context.Context, event string, data json.RawMessage) error {
	body, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}

	key := keyPrefix + entryName(time.Now())
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("store broadcast: %w", err)
	}

	c.logger.DebugContext(ctx, "broadcast queued", "key", key, "event", event)
	return nil
}
