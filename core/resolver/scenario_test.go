package resolver_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"QFMResolver/cache"
	"QFMResolver/core/resolver"
	"QFMResolver/core/source"
	"QFMResolver/db"
	"QFMResolver/model"
	"QFMResolver/repository"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type neteaseStub struct {
	clock *clock
	calls atomic.Int32
}

func (s *neteaseStub) Source() model.MusicSource { return model.SourceNetease }

func (s *neteaseStub) Fetch(_ context.Context, id, quality string) (*model.PlaybackCandidate, error) {
	s.calls.Add(1)
	exp := s.clock.Now().Add(3600 * time.Second)
	br := 320
	return &model.PlaybackCandidate{
		Quality:   quality,
		Bitrate:   &br,
		Format:    "mp3",
		URL:       "https://m701.music.126.net/" + id + ".mp3",
		ExpiresAt: &exp,
		IsActive:  true,
		Track:     &model.Track{Title: "晴天", Artist: "周杰伦"},
	}, nil
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// 网易云 12345，请求 high，优先级 [NETEASE, TENCENT]
func TestEndToEndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	gdb := openSQLite(t)

	store := cache.NewMemoryStore(cache.MemoryOptions{Clock: clk.Now})
	defer store.Close()
	urls := repository.NewGormSongURLRepository(gdb, repository.WithClock(clk.Now))
	songs := repository.NewGormSongRepository(gdb)
	netease := &neteaseStub{clock: clk}

	r := resolver.New(resolver.Config{
		MaxCacheTTL: 10 * time.Minute,
		Clock:       clk.Now,
		Logger:      zap.NewNop(),
	}, resolver.Deps{
		Cache:    store,
		URLs:     urls,
		Songs:    songs,
		Registry: source.NewRegistry(netease),
	})

	key := model.TrackKey{Source: model.SourceNetease, SourceID: "12345"}
	priority := []model.MusicSource{model.SourceNetease, model.SourceTencent}
	cacheKey := resolver.CacheKey(key, "high")

	// 第一次：上游获取
	out, err := r.Resolve(ctx, key, "high", priority)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if out.Kind != resolver.KindHit || out.Origin != resolver.OriginSource {
		t.Fatalf("first = %s/%s", out.Kind, out.Origin)
	}
	if c, err := urls.FindValid(ctx, key, "high"); err != nil || !c.IsActive {
		t.Fatalf("repository has no active record: %v", err)
	}
	if _, err := store.Get(ctx, cacheKey); err != nil {
		t.Fatalf("cache not populated: %v", err)
	}
	track, err := songs.FindBySource(ctx, model.SourceNetease, "12345")
	if err != nil || track.Title != "晴天" {
		t.Errorf("song metadata not recorded: %+v %v", track, err)
	}

	// 第二次：TTL 缓存命中
	out, err = r.Resolve(ctx, key, "high", priority)
	if err != nil || out.Origin != resolver.OriginCache {
		t.Fatalf("second = %v %v", out.Origin, err)
	}

	// TTL 缓存过期，地址仍有效：仓库命中并回填缓存
	clk.Advance(11 * time.Minute)
	if _, err := store.Get(ctx, cacheKey); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("cache entry should have expired: %v", err)
	}
	out, err = r.Resolve(ctx, key, "high", priority)
	if err != nil || out.Origin != resolver.OriginDurable {
		t.Fatalf("third = %v %v", out.Origin, err)
	}
	if _, err := store.Get(ctx, cacheKey); err != nil {
		t.Errorf("cache not repopulated: %v", err)
	}

	// 超过 expiresAt：重新调用上游
	clk.Advance(50 * time.Minute)
	out, err = r.Resolve(ctx, key, "high", priority)
	if err != nil || out.Origin != resolver.OriginSource {
		t.Fatalf("fourth = %v %v", out.Origin, err)
	}

	if got := netease.calls.Load(); got != 2 {
		t.Errorf("netease calls = %d, want 2", got)
	}
}
