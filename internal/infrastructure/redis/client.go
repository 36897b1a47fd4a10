// Package redis mirrors medication state into Redis so dashboards and
// other services can read it without talking to medminder directly.
//
// Keys (with the default "medminder" prefix):
//
//	medminder:state:{entry_id}   hash of medication_id -> JSON state
//	medminder:events             stream of state-change events
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

const (
	defaultPrefix = "medminder"
	pingTimeout   = 5 * time.Second
)

// Sentinel errors.
var (
	ErrDisabled         = errors.New("redis: disabled in configuration")
	ErrConnectionFailed = errors.New("redis: connection failed")
)

// Client wraps a go-redis client with medminder key naming.
type Client struct {
	rdb       *redis.Client
	prefix    string
	maxStream int64
}

// Connect dials Redis and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return NewWithClient(rdb, cfg), nil
}

// NewWithClient wraps an existing go-redis client.
func NewWithClient(rdb *redis.Client, cfg config.RedisConfig) *Client {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Client{rdb: rdb, prefix: prefix, maxStream: cfg.StreamMaxLen}
}

// StateKey returns the hash key holding an entry's medication states.
func (c *Client) StateKey(entryID string) string {
	return c.prefix + ":state:" + entryID
}

// EventStream returns the stream key for state-change events.
func (c *Client) EventStream() string {
	return c.prefix + ":events"
}

// SetState stores the JSON state of one medication.
func (c *Client) SetState(ctx context.Context, entryID, medicationID string, state []byte) error {
	if err := c.rdb.HSet(ctx, c.StateKey(entryID), medicationID, state).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", medicationID, err)
	}
	return nil
}

// States returns medication_id -> JSON state for an entry.
func (c *Client) States(ctx context.Context, entryID string) (map[string]string, error) {
	out, err := c.rdb.HGetAll(ctx, c.StateKey(entryID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", entryID, err)
	}
	return out, nil
}

// AppendEvent adds an entry to the event stream and returns its ID.
func (c *Client) AppendEvent(ctx context.Context, values map[string]any) (string, error) {
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.EventStream(),
		MaxLen: c.maxStream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis XADD: %w", err)
	}
	return id, nil
}

// StreamEntry is one event stream message.
type StreamEntry struct {
	ID     string
	Values map[string]any
}

// RecentEvents returns up to n events, newest first.
func (c *Client) RecentEvents(ctx context.Context, n int64) ([]StreamEntry, error) {
	msgs, err := c.rdb.XRevRangeN(ctx, c.EventStream(), "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("redis XREVRANGE: %w", err)
	}
	out := make([]StreamEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, StreamEntry{ID: m.ID, Values: m.Values})
	}
	return out, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool. Safe on a nil receiver.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
