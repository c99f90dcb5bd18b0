package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeReservations marks room codes as taken in Redis so instances sharing it never hand out the
// same code. Markers expire unless refreshed, which the registry's reaper does for live rooms.
type CodeReservations struct {
	client   *redis.Client
	ttl      time.Duration
	instance string
}

func NewCodeReservations(client *redis.Client, ttl time.Duration, instance string) *CodeReservations {
	return &CodeReservations{client: client, ttl: ttl, instance: instance}
}

func (c *CodeReservations) Reserve(ctx context.Context, code string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(code), c.instance, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", code, err)
	}
	return ok, nil
}

func (c *CodeReservations) Refresh(ctx context.Context, code string) error {
	if c.ttl <= 0 {
		return nil
	}
	return c.client.Expire(ctx, c.key(code), c.ttl).Err()
}

func (c *CodeReservations) Release(ctx context.Context, code string) error {
	return c.client.Del(ctx, c.key(code)).Err()
}

func (c *CodeReservations) key(code string) string {
	return "quiz:room:" + code
}
