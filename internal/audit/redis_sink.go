package audit

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel denials are published on.
const DefaultRedisChannel = "audit:denials"

// RedisSink publishes events for live dashboards.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink builds a sink publishing on channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Record publishes the JSON encoded event.
func (s *RedisSink) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}
