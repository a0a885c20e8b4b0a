package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	guardWindow      = 5 * time.Minute
	guardMaxFailures = 10
)

// LoginGuard throttles repeated failed logins per username, backed by a
// Redis counter with a sliding TTL.
// Key format: login_fail:<username>
type LoginGuard struct {
	client *redis.Client
}

// NewLoginGuard creates a LoginGuard wrapping the given Redis client.
func NewLoginGuard(client *redis.Client) *LoginGuard {
	return &LoginGuard{client: client}
}

// Blocked reports whether the username has exceeded the failure budget
// within the current window.
func (g *LoginGuard) Blocked(ctx context.Context, username string) (bool, error) {
	n, err := g.client.Get(ctx, g.key(username)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("login guard check: %w", err)
	}
	return n >= guardMaxFailures, nil
}

// RecordFailure counts a failed attempt and restarts the window.
func (g *LoginGuard) RecordFailure(ctx context.Context, username string) error {
	key := g.key(username)
	pipe := g.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, guardWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("login guard record: %w", err)
	}
	return nil
}

// Clear drops the counter after a successful login.
func (g *LoginGuard) Clear(ctx context.Context, username string) error {
	return g.client.Del(ctx, g.key(username)).Err()
}

func (g *LoginGuard) key(username string) string {
	return "login_fail:" + username
}
