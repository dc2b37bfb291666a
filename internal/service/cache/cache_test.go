package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	N int `json:"n"`
}

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache(0)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	if err := SetJSON(ctx, c, "k", payload{N: 3}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var p payload
	if ok, err := GetJSON(ctx, c, "k", &p); !ok || err != nil || p.N != 3 {
		t.Fatalf("hit expected: %v %v %+v", ok, err, p)
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := GetJSON(ctx, c, "k", &p); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestTTLCacheBounded(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache(2)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	_ = c.SetBytes(ctx, "a", []byte("1"), time.Minute)
	_ = c.SetBytes(ctx, "b", []byte("2"), time.Hour)
	_ = c.SetBytes(ctx, "c", []byte("3"), time.Minute)
	if _, ok, _ := c.GetBytes(ctx, "c"); ok || c.Len() != 2 {
		t.Fatalf("full cache accepted a new key, len %d", c.Len())
	}
	// overwriting a present key is always allowed
	_ = c.SetBytes(ctx, "a", []byte("9"), time.Minute)
	if b, ok, _ := c.GetBytes(ctx, "a"); !ok || string(b) != "9" {
		t.Fatalf("overwrite lost: %s %v", b, ok)
	}

	now = now.Add(2 * time.Minute)
	_ = c.SetBytes(ctx, "c", []byte("3"), time.Minute)
	if _, ok, _ := c.GetBytes(ctx, "c"); !ok || c.Len() != 2 {
		t.Fatalf("expired entry not swept, len %d", c.Len())
	}
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cli.Close()

	c := NewRedisCache(cli, "netflow:api:")
	if _, ok, err := c.GetBytes(ctx, "missing"); ok || err != nil {
		t.Fatalf("miss expected: %v %v", ok, err)
	}
	if err := c.SetBytes(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("netflow:api:k") {
		t.Fatalf("prefix not applied")
	}
	b, ok, err := c.GetBytes(ctx, "k")
	if !ok || err != nil || string(b) != "v" {
		t.Fatalf("get %s %v %v", b, ok, err)
	}
}
