package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/bookgoat/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupTestRedis connects to a local Redis and skips the test when none is
// running. DB 15 is flushed before and after.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestNewRedisCacheFromClient_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("should panic with nil redis client")
		}
	}()
	NewRedisCacheFromClient(nil, time.Minute, testLogger)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, config.CacheConfig{RedisAddr: "127.0.0.1:1"}, testLogger)
	if err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestRedisCache_GetSet(t *testing.T) {
	client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, time.Minute, testLogger)
	ctx := context.Background()

	if _, err := c.Get(ctx, "9780441478125"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	url := "https://www.kobo.com/us/en/ebook/the-left-hand-of-darkness"
	if err := c.Set(ctx, "9780441478125", url); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := c.Get(ctx, "9780441478125")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != url {
		t.Errorf("expected %q, got %q", url, got)
	}

	ttl := client.TTL(ctx, keyPrefix+"9780441478125").Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestRedisCache_Expiry(t *testing.T) {
	client := setupTestRedis(t)
	c := NewRedisCacheFromClient(client, 100*time.Millisecond, testLogger)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after expiry, got %v", err)
	}
}
