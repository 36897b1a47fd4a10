package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

func setupTestRedis(t *testing.T, cfg config.RedisConfig) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Enabled = true
	cfg.Addr = mr.Addr()
	c, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return mr, c
}

func TestConnect(t *testing.T) {
	if _, err := Connect(context.Background(), config.RedisConfig{}); !errors.Is(err, ErrDisabled) {
		t.Errorf("disabled Connect() error = %v", err)
	}

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := Connect(context.Background(), config.RedisConfig{Enabled: true, Addr: addr})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("unreachable Connect() error = %v", err)
	}
}

func TestKeys(t *testing.T) {
	c := NewWithClient(redis.NewClient(&redis.Options{}), config.RedisConfig{})
	defer c.Close() //nolint:errcheck // test cleanup
	if got := c.StateKey("home"); got != "medminder:state:home" {
		t.Errorf("StateKey = %q", got)
	}

	c = NewWithClient(redis.NewClient(&redis.Options{}), config.RedisConfig{KeyPrefix: "mm"})
	defer c.Close() //nolint:errcheck // test cleanup
	if got := c.EventStream(); got != "mm:events" {
		t.Errorf("EventStream = %q", got)
	}
}

func TestStates(t *testing.T) {
	mr, c := setupTestRedis(t, config.RedisConfig{})
	ctx := context.Background()

	if err := c.SetState(ctx, "home", "aspirin", []byte(`{"inventory":9}`)); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if err := c.SetState(ctx, "home", "aspirin", []byte(`{"inventory":8}`)); err != nil {
		t.Fatalf("SetState() overwrite error = %v", err)
	}
	if got := mr.HGet("medminder:state:home", "aspirin"); got != `{"inventory":8}` {
		t.Errorf("stored state = %q", got)
	}

	states, err := c.States(ctx, "home")
	if err != nil || len(states) != 1 {
		t.Fatalf("States() = %v, %v", states, err)
	}
	empty, err := c.States(ctx, "cabin")
	if err != nil || len(empty) != 0 {
		t.Errorf("States(cabin) = %v, %v", empty, err)
	}
}

func TestEventStream(t *testing.T) {
	_, c := setupTestRedis(t, config.RedisConfig{StreamMaxLen: 2})
	ctx := context.Background()

	for _, med := range []string{"aspirin", "zinc", "iron"} {
		if _, err := c.AppendEvent(ctx, map[string]any{"medication_id": med, "type": "medication_updated"}); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", med, err)
		}
	}

	events, err := c.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 after trimming", len(events))
	}
	if events[0].Values["medication_id"] != "iron" {
		t.Errorf("newest event = %v, want iron", events[0].Values)
	}
}

func TestHealthCheck(t *testing.T) {
	mr, c := setupTestRedis(t, config.RedisConfig{})
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	mr.Close()
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after server stop should fail")
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
