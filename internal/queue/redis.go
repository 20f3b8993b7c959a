package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Codec (de)serializes queue items to the byte form stored in Redis.
// Kept as a caller-supplied pair rather than gob-registering model types
// in this package, so internal/queue has no dependency on internal/model.
type Codec struct {
	Encode func(item any) ([]byte, error)
	Decode func(data []byte) (any, error)
}

// Redis is a list-backed Queue, the Go analogue of
// infobserve/common/queue.py's RedisQueue: PutBlocking maps to LPUSH,
// GetBlocking to BRPOP. Notify and Join are intentionally no-ops — a
// broker-backed queue has no in-process waiter to signal, and delivery
// durability is the broker's concern, not this abstraction's (see
// DESIGN.md Open Question #2).
type Redis struct {
	client  *redis.Client
	key     string
	maxSize int
	codec   Codec
}

// NewRedis wraps an existing *redis.Client. maxSize <= 0 means
// unbounded — PutNonBlocking then never reports ErrFull, since LLEN
// checks against an unenforced cap would just be racy.
func NewRedis(client *redis.Client, key string, maxSize int, codec Codec) *Redis {
	return &Redis{client: client, key: key, maxSize: maxSize, codec: codec}
}

func (r *Redis) PutBlocking(ctx context.Context, item any) error {
	return r.push(ctx, item)
}

func (r *Redis) PutNonBlocking(item any) error {
	ctx := context.Background()
	if r.maxSize > 0 {
		n, err := r.client.LLen(ctx, r.key).Result()
		if err != nil {
			return fmt.Errorf("queue/redis: llen: %w", err)
		}
		if int(n) >= r.maxSize {
			return ErrFull
		}
	}
	return r.push(ctx, item)
}

func (r *Redis) push(ctx context.Context, item any) error {
	data, err := r.codec.Encode(item)
	if err != nil {
		return fmt.Errorf("queue/redis: encode: %w", err)
	}
	if err := r.client.LPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("queue/redis: lpush: %w", err)
	}
	return nil
}

func (r *Redis) GetBlocking(ctx context.Context) (any, error) {
	res, err := r.client.BRPop(ctx, 0, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("queue/redis: brpop: %w", err)
	}
	// res is [key, value]
	return r.codec.Decode([]byte(res[1]))
}

func (r *Redis) GetNonBlocking() (any, error) {
	ctx := context.Background()
	data, err := r.client.RPop(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("queue/redis: rpop: %w", err)
	}
	return r.codec.Decode(data)
}

// Notify is a no-op for the broker-backed queue; see the Redis doc
// comment.
func (r *Redis) Notify() {}

// Join is a no-op for the broker-backed queue; see the Redis doc
// comment.
func (r *Redis) Join(ctx context.Context) error { return nil }

func (r *Redis) Depth() int {
	n, err := r.client.LLen(context.Background(), r.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (r *Redis) MaxSize() int { return r.maxSize }
