package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "krikri:queue:"
	queuesKey = "krikri:queues"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisQueue implements Queue with one Redis list per queue.
type RedisQueue struct {
	client      *redis.Client
	readTimeout time.Duration
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(opts RedisOptions) (*RedisQueue, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{client: client, readTimeout: opts.ReadTimeout}, nil
}

// Push appends a message to the named queue and records the queue name.
func (q *RedisQueue) Push(ctx context.Context, queue string, msg Message) error {
	if queue == "" {
		return errors.New("queue name is required")
	}
	msg.Queue = queue
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.SAdd(ctx, queuesKey, queue)
	pipe.LPush(ctx, keyPrefix+queue, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}
	return nil
}

// Pop blocks on BRPOP across the given queues.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration, queues ...string) (*Message, error) {
	if len(queues) == 0 {
		return nil, errors.New("at least one queue is required")
	}
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = keyPrefix + name
	}

	result, err := q.client.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to pop from queues %v: %w", queues, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("%w from %s: %v", ErrMalformedMessage, strings.TrimPrefix(result[0], keyPrefix), err)
	}
	if msg.ActivityID == "" {
		return nil, fmt.Errorf("%w from %s: missing activity id", ErrMalformedMessage, strings.TrimPrefix(result[0], keyPrefix))
	}
	return &msg, nil
}

// Size returns the length of the named queue.
func (q *RedisQueue) Size(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, keyPrefix+queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get size of queue %s: %w", queue, err)
	}
	return n, nil
}

// Queues lists known queue names in sorted order.
func (q *RedisQueue) Queues(ctx context.Context) ([]string, error) {
	names, err := q.client.SMembers(ctx, queuesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
