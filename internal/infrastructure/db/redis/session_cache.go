package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

const DefaultSessionKey = "identity-session:current"

// SessionCache stores the last published identity as JSON under a single key.
type SessionCache struct {
	client redis.Cmdable
	key    string
}

var _ ports.SessionCache = (*SessionCache)(nil)

func NewSessionCache(client redis.Cmdable, key string) *SessionCache {
	if key == "" {
		key = DefaultSessionKey
	}
	return &SessionCache{client: client, key: key}
}

func (c *SessionCache) Read(ctx context.Context) (*domain.Identity, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session cache: read: %w", err)
	}

	var id domain.Identity
	if err := json.Unmarshal(val, &id); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	return &id, nil
}

func (c *SessionCache) Write(ctx context.Context, id *domain.Identity) error {
	if id == nil {
		return c.client.Del(ctx, c.key).Err()
	}
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("session cache: encode: %w", err)
	}
	return c.client.Set(ctx, c.key, data, 0).Err()
}
