package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/floq/internal/workqueue"
)

// RedisLister is the slice of a Redis client the forwarder needs.
type RedisLister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// RedisForwarder pushes each dead letter as a JSON Entry onto a Redis list.
// The key may contain "{queue}", which is replaced by the queue name.
type RedisForwarder struct {
	client RedisLister
	key    string
	maxLen int64
	now    func() time.Time
}

// NewRedisForwarder returns a forwarder writing to key. With maxLen > 0 the
// list is trimmed to its newest maxLen entries after each push.
func NewRedisForwarder(client RedisLister, key string, maxLen int64) *RedisForwarder {
	return &RedisForwarder{client: client, key: key, maxLen: maxLen, now: time.Now}
}

func (f *RedisForwarder) keyFor(queue string) string {
	return strings.ReplaceAll(f.key, "{queue}", queue)
}

// OnDeadLetter implements workqueue.DeadLetterSink.
func (f *RedisForwarder) OnDeadLetter(ctx context.Context, msg workqueue.Message) error {
	body, err := json.Marshal(FromMessage(msg, f.now()))
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	key := f.keyFor(msg.Queue)
	if err := f.client.LPush(ctx, key, body).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", key, err)
	}
	if f.maxLen > 0 {
		if err := f.client.LTrim(ctx, key, 0, f.maxLen-1).Err(); err != nil {
			return fmt.Errorf("redis ltrim %s: %w", key, err)
		}
	}
	return nil
}
