package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quickmv/videoworker/internal/model"
)

// CompletionChannel is the pub/sub channel for job completion events
const CompletionChannel = "video:complete"

// Publisher delivers the single completion event per job, at most once.
type Publisher interface {
	PublishCompletion(ctx context.Context, event model.CompletionEvent) error
}

// RedisPublisher implements Publisher on Redis pub/sub
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) PublishCompletion(ctx context.Context, event model.CompletionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}
	return p.redis.Publish(ctx, CompletionChannel, data).Err()
}
