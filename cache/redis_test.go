package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, "qfm:")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestRedis(t)

	if err := s.Set(ctx, "url:netease:1:high", []byte(`{"url":"x"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("qfm:url:netease:1:high") {
		t.Fatalf("prefix not applied, keys = %v", mr.Keys())
	}
	if ttl := mr.TTL("qfm:url:netease:1:high"); ttl != time.Minute {
		t.Errorf("ttl = %s", ttl)
	}

	got, err := s.Get(ctx, "url:netease:1:high")
	if err != nil || string(got) != `{"url":"x"}` {
		t.Fatalf("Get = %q, %v", got, err)
	}

	mr.FastForward(time.Minute)
	if _, err := s.Get(ctx, "url:netease:1:high"); !errors.Is(err, ErrMiss) {
		t.Errorf("expired key returned: %v", err)
	}
}

func TestRedisStoreNoTTL(t *testing.T) {
	ctx := context.Background()
	mr, s := newTestRedis(t)

	_ = s.Set(ctx, "k", []byte("v"), 0)
	if ttl := mr.TTL("qfm:k"); ttl != 0 {
		t.Errorf("ttl = %s, want none", ttl)
	}
}

func TestRedisStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	_, s := newTestRedis(t)

	if err := s.Invalidate(ctx, "absent"); err != nil {
		t.Fatalf("invalidate absent: %v", err)
	}
	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if err := s.Invalidate(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after invalidate: %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client, "qfm:")
	mr.Close()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get err = %v, want ErrUnavailable", err)
	}
	if err := s.Set(ctx, "k", []byte("v"), time.Second); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Set err = %v, want ErrUnavailable", err)
	}
}
