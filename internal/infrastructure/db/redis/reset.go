package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultResetThrottle = time.Minute
	DefaultResetTokenTTL = time.Hour
)

// ResetThrottle allows one password reset request per email per window.
// Key format: reset:throttle:<email>
type ResetThrottle struct {
	client redis.Cmdable
	window time.Duration
}

func NewResetThrottle(client redis.Cmdable, window time.Duration) *ResetThrottle {
	if window <= 0 {
		window = DefaultResetThrottle
	}
	return &ResetThrottle{client: client, window: window}
}

// Allow reports whether a new request for email may proceed and, if so,
// opens the window.
func (t *ResetThrottle) Allow(ctx context.Context, email string) (bool, error) {
	ok, err := t.client.SetNX(ctx, "reset:throttle:"+email, "1", t.window).Result()
	if err != nil {
		return false, fmt.Errorf("reset throttle: %w", err)
	}
	return ok, nil
}

// ResetTokens keeps one-time password reset tokens until they expire.
// Key format: reset:token:<token>
type ResetTokens struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewResetTokens(client redis.Cmdable, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokens{client: client, ttl: ttl}
}

func (r *ResetTokens) Save(ctx context.Context, token, email string) error {
	return r.client.Set(ctx, "reset:token:"+token, email, r.ttl).Err()
}
