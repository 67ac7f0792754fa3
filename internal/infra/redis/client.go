package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the watch-job queue.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// WatchJob is one queued unit of work: follow a single command invocation
// until it reaches the desired status.
type WatchJob struct {
	CommandID string        `json:"command_id"`
	TargetID  string        `json:"target_id"`
	Desired   string        `json:"desired"`
	Timeout   time.Duration `json:"timeout"`
	Interval  time.Duration `json:"interval"`
	Requeues  int           `json:"requeues"`
}

const jobQueueKey = "watch_jobs"

func lockKey(commandID, targetID string) string {
	return fmt.Sprintf("watching:%s:%s", commandID, targetID)
}

// PushJob appends a watch job to the queue.
func (c *Client) PushJob(ctx context.Context, job WatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := c.rdb.RPush(ctx, jobQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}
	return nil
}

// PopJob removes and returns the oldest watch job. The second return value
// is false when the queue is empty.
func (c *Client) PopJob(ctx context.Context) (WatchJob, bool, error) {
	data, err := c.rdb.LPop(ctx, jobQueueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return WatchJob{}, false, nil
	}
	if err != nil {
		return WatchJob{}, false, fmt.Errorf("failed to pop job: %w", err)
	}

	var job WatchJob
	if err := json.Unmarshal(data, &job); err != nil {
		return WatchJob{}, false, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return job, true, nil
}

// QueueDepth returns the number of pending watch jobs.
func (c *Client) QueueDepth(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, jobQueueKey).Result()
}

// Lock takes a processing lock for an invocation so two workers never watch
// the same one concurrently. Returns false when the lock is already held.
func (c *Client) Lock(ctx context.Context, commandID, targetID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockKey(commandID, targetID), 1, ttl).Result()
}

// Unlock releases a processing lock.
func (c *Client) Unlock(ctx context.Context, commandID, targetID string) error {
	return c.rdb.Del(ctx, lockKey(commandID, targetID)).Err()
}
