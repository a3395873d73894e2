package socket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
)

// RedisPublisher publishes events on "<prefix><user id>" channels that the
// socket gateway subscribes to.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

type redisEvent struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

func NewRedisPublisher(conf *config.Config, client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: conf.Redis.ChannelPrefix,
	}
}

func (p *RedisPublisher) channel(userID primitive.ObjectID) string {
	return p.prefix + userID.Hex()
}

func encodeRedisEvent(name string, data any) ([]byte, error) {
	payload, err := json.Marshal(redisEvent{Name: name, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", name, err)
	}
	return payload, nil
}

func (p *RedisPublisher) SendToUsers(ctx context.Context, userIDs []primitive.ObjectID, name string, data any) error {
	payload, err := encodeRedisEvent(name, data)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	for _, id := range userIDs {
		pipe.Publish(ctx, p.channel(id), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", name, err)
	}
	return nil
}
