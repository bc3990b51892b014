package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueName is the Redis list holding pending verification tasks.
const QueueName = "mailverify:tasks"

// Task is one queued verification: which job it belongs to and the address.
type Task struct {
	JobID string `json:"job_id"`
	Email string `json:"email"`
}

// Client wraps the Redis connection used for the bulk-job queue.
type Client struct {
	rdb *redis.Client
}

// Connect dials Redis and pings it to ensure it's alive.
func Connect(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Enqueue pushes one task onto the tail of the queue.
func (c *Client) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return c.rdb.RPush(ctx, QueueName, payload).Err()
}

// Dequeue blocks until a task is available or ctx is cancelled.
func (c *Client) Dequeue(ctx context.Context) (Task, error) {
	var task Task
	result, err := c.rdb.BLPop(ctx, 0, QueueName).Result()
	if err != nil {
		return task, err
	}
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return task, fmt.Errorf("malformed task %q: %w", result[1], err)
	}
	return task, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
