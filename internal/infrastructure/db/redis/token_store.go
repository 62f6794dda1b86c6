package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTokenKey = "identity-session:provider-token"

// TokenStore persists the provider's signed session token so the session
// survives a restart.
type TokenStore struct {
	client redis.Cmdable
	key    string
}

func NewTokenStore(client redis.Cmdable, key string) *TokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{client: client, key: key}
}

// Load returns "" when no token is stored.
func (s *TokenStore) Load(ctx context.Context) (string, error) {
	tok, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token store: load: %w", err)
	}
	return tok, nil
}

func (s *TokenStore) Save(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key, token, ttl).Err()
}

func (s *TokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
