// Package wakebus gives operators a way to nudge each other awake
// between poll intervals: a Redis Stream per operator name that a
// Runner blocks on with a short timeout alongside its regular ticker.
// Delivery is best-effort — a send that fails or a signal nobody is
// listening for is silently dropped, since the poll loop is always the
// backstop (spec's operators never depend on a signal arriving).
package wakebus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxStreamLength = 100

// Bus is a thin wrapper over Redis Streams used only to shorten an
// operator's next poll, never as its source of truth.
type Bus struct {
	client *redis.Client
}

// New parses redisURL, connects, and verifies the connection with a ping.
func New(redisURL string) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("wakebus: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("wakebus: connect: %w", err)
	}
	return &Bus{client: client}, nil
}

func streamKey(operator string) string {
	return "bos:wake:" + operator
}

// Wake signals the named operator to run its next iteration early.
// Errors are swallowed by callers that treat waking as an optimization,
// never a correctness requirement; Wake itself still reports them so a
// caller that wants to log a failed signal can.
func (b *Bus) Wake(ctx context.Context, operator string) error {
	if b == nil || b.client == nil {
		return nil
	}
	args := &redis.XAddArgs{
		Stream: streamKey(operator),
		MaxLen: maxStreamLength,
		Approx: true,
		Values: map[string]interface{}{"at": time.Now().Format(time.RFC3339Nano)},
	}
	return b.client.XAdd(ctx, args).Err()
}

// WaitForWake blocks up to timeout for a wake signal addressed to
// operator, returning true if one arrived. A nil Bus (wakebus disabled)
// always returns false immediately rather than blocking.
func (b *Bus) WaitForWake(ctx context.Context, operator string, timeout time.Duration) bool {
	if b == nil || b.client == nil {
		return false
	}
	res, err := b.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamKey(operator), "$"},
		Count:   1,
		Block:   timeout,
	}).Result()
	if err != nil || len(res) == 0 {
		return false
	}
	return true
}

// Close releases the underlying Redis connection.
func (b *Bus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
