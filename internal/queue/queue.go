// Package queue carries live vector records and detection reports over
// Redis lists.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

// Common errors.
var (
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrConnectionLost = errors.New("queue connection lost")
)

// Queue defines the interface for record queue operations.
type Queue interface {
	// Push appends a raw record to the input list.
	Push(ctx context.Context, record []byte) error
	// Pop blocks for the next raw record.
	Pop(ctx context.Context) ([]byte, error)
	// Publish appends a detection report to the result list.
	Publish(ctx context.Context, report []byte) error
	// Close closes the queue connection.
	Close() error
}

// RedisQueue implements Queue using Redis lists. Records are pushed on the
// left and popped from the right, so arrival order is preserved.
type RedisQueue struct {
	client     *redis.Client
	queueKey   string
	resultsKey string
	cfg        RedisConfig
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// PopTimeout bounds one blocking pop. Redis rounds it up to a whole second.
	PopTimeout time.Duration
	// DrainWhenEmpty makes Next report io.EOF once a pop times out, instead
	// of waiting for more records.
	DrainWhenEmpty bool
	// MaxResults trims the result list; zero keeps every report.
	MaxResults int64
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(cfg RedisConfig, queueName string) (*RedisQueue, error) {
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		ContextTimeoutEnabled: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{
		client:     client,
		queueKey:   "phe:queue:" + queueName,
		resultsKey: "phe:results:" + queueName,
		cfg:        cfg,
	}, nil
}

func (q *RedisQueue) Push(ctx context.Context, record []byte) error {
	if err := q.client.LPush(ctx, q.queueKey, record).Err(); err != nil {
		return fmt.Errorf("push record: %w", err)
	}
	return nil
}

// Pop waits up to PopTimeout for a record and returns ErrQueueEmpty if
// none arrived.
func (q *RedisQueue) Pop(ctx context.Context) ([]byte, error) {
	result, err := q.client.BRPop(ctx, q.cfg.PopTimeout, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("%w: pop record: %v", ErrConnectionLost, err)
	}

	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}

	return []byte(result[1]), nil
}

// Next returns the next record for a detection pipeline. Empty polls are
// retried until the context ends, unless DrainWhenEmpty is set.
func (q *RedisQueue) Next(ctx context.Context) ([]byte, error) {
	for {
		record, err := q.Pop(ctx)
		if errors.Is(err, ErrQueueEmpty) {
			if q.cfg.DrainWhenEmpty {
				return nil, io.EOF
			}
			continue
		}
		return record, err
	}
}

func (q *RedisQueue) Publish(ctx context.Context, report []byte) error {
	pipe := q.client.Pipeline()
	pipe.LPush(ctx, q.resultsKey, report)
	if q.cfg.MaxResults > 0 {
		pipe.LTrim(ctx, q.resultsKey, 0, q.cfg.MaxResults-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// Results returns up to limit published reports, newest first.
func (q *RedisQueue) Results(ctx context.Context, limit int64) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	values, err := q.client.LRange(ctx, q.resultsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

// Len returns the number of records waiting in the input list.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
