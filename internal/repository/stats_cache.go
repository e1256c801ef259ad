package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/analyticket/helpdesk/internal/domain"
)

// StatsCache stores per-principal analytics counts for a short time.
// Invalidate drops every cached entry after tickets change.
type StatsCache interface {
	Get(ctx context.Context, key string) (map[domain.TicketStatus]int, bool, error)
	Set(ctx context.Context, key string, counts map[domain.TicketStatus]int, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

const statsGenerationKey = "stats:generation"

type redisStatsCache struct {
	client *redis.Client
}

// NewRedisStatsCache builds a cache on client.
func NewRedisStatsCache(client *redis.Client) StatsCache {
	return &redisStatsCache{client: client}
}

func (c *redisStatsCache) Get(ctx context.Context, key string) (map[domain.TicketStatus]int, bool, error) {
	full, err := c.key(ctx, key)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var counts map[domain.TicketStatus]int
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, false, err
	}
	return counts, true, nil
}

func (c *redisStatsCache) Set(ctx context.Context, key string, counts map[domain.TicketStatus]int, ttl time.Duration) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	full, err := c.key(ctx, key)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, full, raw, ttl).Err()
}

// Invalidate bumps the generation so older entries are never read again;
// they expire on their own TTL.
func (c *redisStatsCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, statsGenerationKey).Err()
}

func (c *redisStatsCache) key(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, statsGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return "stats:" + strconv.FormatInt(gen, 10) + ":" + key, nil
}
