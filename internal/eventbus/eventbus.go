// Package eventbus publishes component and session status-change
// events for consumption by the websocket monitor in internal/server:
// one stream per tenant, two event kinds, no durable replay contract
// beyond Redis's own stream trimming.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxStreamLength = 1000

// EventType names what changed.
type EventType string

const (
	EventComponentStatus EventType = "component_status"
	EventSessionStatus   EventType = "session_status"
)

// Event is one status-change notification.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Bus is a thin wrapper over one Redis Stream per tenant.
type Bus struct {
	client *redis.Client
}

// New parses redisURL, connects, and verifies the connection with a ping.
func New(redisURL string) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("eventbus: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	return &Bus{client: client}, nil
}

func streamKey(tenant string) string {
	return "bos:events:" + tenant
}

// Publish appends an event to a tenant's stream. Publication is
// best-effort: the operator that observed the status change has
// already durably written it to the store, so a publish failure is
// logged, not propagated as an operator error.
func (b *Bus) Publish(ctx context.Context, tenant string, typ EventType, data interface{}) {
	if b == nil || b.client == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("eventbus: marshal %s event: %v", typ, err)
		return
	}
	args := &redis.XAddArgs{
		Stream: streamKey(tenant),
		MaxLen: maxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"type":      string(typ),
			"timestamp": time.Now().Format(time.RFC3339Nano),
			"data":      string(payload),
		},
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		log.Printf("eventbus: publish %s event for tenant %s: %v", typ, tenant, err)
	}
}

// Subscribe streams events for a tenant from the current tail onward,
// for the websocket monitor. The returned channel is closed when ctx is
// canceled or the subscription hits an unrecoverable error.
func (b *Bus) Subscribe(ctx context.Context, tenant string) (<-chan Event, error) {
	if b == nil || b.client == nil {
		ch := make(chan Event)
		close(ch)
		return ch, nil
	}
	key := streamKey(tenant)
	ch := make(chan Event, 64)

	go func() {
		defer close(ch)
		lastID := "$"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   20,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					ev := Event{ID: msg.ID}
					if t, ok := msg.Values["type"].(string); ok {
						ev.Type = EventType(t)
					}
					if ts, ok := msg.Values["timestamp"].(string); ok {
						if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
							ev.Timestamp = parsed
						}
					}
					if d, ok := msg.Values["data"].(string); ok {
						ev.Data = json.RawMessage(d)
					}
					select {
					case ch <- ev:
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// Close releases the underlying Redis connection.
func (b *Bus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
