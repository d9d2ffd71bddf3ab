//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "integration:" + time.Now().Format(time.RFC3339Nano)

	if err := c.Set(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("hit after delete")
	}
}

func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("KNOWLEDGEMAP_REDIS_ADDR")
	if addr == "" {
		t.Skip("KNOWLEDGEMAP_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := DialRedis(ctx, RedisOptions{Addr: addr, Prefix: "knowledgemap-test:"})
	if err != nil {
		t.Fatalf("DialRedis: %v", err)
	}
	defer c.Close()
	exercise(t, c)

	if err := c.Clear(ctx); err != nil {
		t.Errorf("Clear: %v", err)
	}
}

func TestMongoCache_Integration(t *testing.T) {
	uri := os.Getenv("KNOWLEDGEMAP_MONGO_URI")
	if uri == "" {
		t.Skip("KNOWLEDGEMAP_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := DialMongo(ctx, MongoOptions{URI: uri, Database: "knowledgemap_test"})
	if err != nil {
		t.Fatalf("DialMongo: %v", err)
	}
	defer c.Close()
	exercise(t, c)

	if err := c.Clear(ctx); err != nil {
		t.Errorf("Clear: %v", err)
	}
}
