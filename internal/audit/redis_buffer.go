package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const enqueueTimeout = 2 * time.Second

// RedisBuffer stages audit records in a Redis list until the flush worker
// drains them. Enqueue never blocks the request path for long: on a slow or
// unavailable Redis the record is dropped rather than holding up the chat.
type RedisBuffer struct {
	client *redis.Client
	key    string
}

// NewRedisBuffer creates a buffer over the given Redis list key
func NewRedisBuffer(client *redis.Client, key string) *RedisBuffer {
	return &RedisBuffer{
		client: client,
		key:    key,
	}
}

// Enqueue appends a record to the buffer
func (b *RedisBuffer) Enqueue(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	if err := b.client.RPush(ctx, b.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push audit record: %w", err)
	}
	return nil
}

// Drain removes and returns up to max buffered records without blocking
func (b *RedisBuffer) Drain(ctx context.Context, max int) ([]*Record, error) {
	var records []*Record
	for len(records) < max {
		data, err := b.client.LPop(ctx, b.key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return records, fmt.Errorf("failed to pop audit record: %w", err)
		}

		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			// Skip undecodable entries rather than wedging the drain.
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Len returns the number of buffered records
func (b *RedisBuffer) Len(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.key).Result()
}
