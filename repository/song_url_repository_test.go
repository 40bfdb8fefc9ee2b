package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"QFMResolver/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&model.SongRecord{}, &model.SongURLRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

var (
	testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	testKey = model.TrackKey{Source: model.SourceNetease, SourceID: "12345"}
)

func newTestURLRepo(t *testing.T) (*gormSongURLRepository, *gorm.DB) {
	gdb := openTestDB(t)
	repo := NewGormSongURLRepository(gdb, WithClock(func() time.Time { return testNow })).(*gormSongURLRepository)
	return repo, gdb
}

func urlCandidate(src model.MusicSource, quality string, br int, expires time.Duration) *model.PlaybackCandidate {
	exp := testNow.Add(expires)
	return &model.PlaybackCandidate{
		TrackKey:  testKey,
		Source:    src,
		Quality:   quality,
		Bitrate:   &br,
		Format:    "mp3",
		URL:       "https://cdn.example.com/" + src.Lower() + "/" + quality,
		ExpiresAt: &exp,
		IsActive:  true,
	}
}

func TestFindValidPrefersExactQuality(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestURLRepo(t)

	for _, c := range []*model.PlaybackCandidate{
		urlCandidate(model.SourceNetease, "standard", 128, time.Hour),
		urlCandidate(model.SourceNetease, "lossless", 900, time.Hour),
		urlCandidate(model.SourceKugou, "high", 320, time.Hour),
	} {
		if err := repo.Upsert(ctx, c); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	got, err := repo.FindValid(ctx, testKey, "high")
	if err != nil {
		t.Fatal(err)
	}
	if got.Quality != "high" || got.Source != model.SourceKugou {
		t.Errorf("exact match = %s/%s", got.Source, got.Quality)
	}

	// exhigh 与 high 同档
	got, err = repo.FindValid(ctx, testKey, "exhigh")
	if err != nil || got.Quality != "high" {
		t.Errorf("same tier = %v, %v", got, err)
	}

	// 没有完全匹配或未指定时取码率最高
	for _, q := range []string{"hires", ""} {
		got, err = repo.FindValid(ctx, testKey, q)
		if err != nil {
			t.Fatal(err)
		}
		if got.Quality != "lossless" {
			t.Errorf("quality %q: best = %s", q, got.Quality)
		}
	}
}

func TestFindValidSkipsExpiredAndInactive(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestURLRepo(t)

	expired := urlCandidate(model.SourceNetease, "lossless", 900, -time.Minute)
	inactive := urlCandidate(model.SourceKuwo, "hires", 2000, time.Hour)
	inactive.IsActive = false
	for _, c := range []*model.PlaybackCandidate{expired, inactive} {
		if err := repo.Upsert(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := repo.FindValid(ctx, testKey, "lossless"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale rows returned: %v", err)
	}

	valid := urlCandidate(model.SourceNetease, "standard", 128, time.Hour)
	_ = repo.Upsert(ctx, valid)
	got, err := repo.FindValid(ctx, testKey, "lossless")
	if err != nil {
		t.Fatal(err)
	}
	if got.Quality != "standard" {
		t.Errorf("got %s", got.Quality)
	}
}

func TestUpsertReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	repo, gdb := newTestURLRepo(t)

	first := urlCandidate(model.SourceNetease, "HIGH", 320, time.Minute)
	_ = repo.Upsert(ctx, first)
	second := urlCandidate(model.SourceNetease, "high", 320, time.Hour)
	second.URL = "https://cdn.example.com/refreshed"
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatal(err)
	}

	var count int64
	gdb.Model(&model.SongURLRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
	got, err := repo.FindValid(ctx, testKey, "high")
	if err != nil || got.URL != second.URL {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestMarkInactive(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestURLRepo(t)

	_ = repo.Upsert(ctx, urlCandidate(model.SourceNetease, "high", 320, time.Hour))
	if err := repo.MarkInactive(ctx, testKey, "high", model.SourceNetease); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.FindValid(ctx, testKey, "high"); !errors.Is(err, ErrNotFound) {
		t.Errorf("inactive row returned: %v", err)
	}

	// 重新获取后恢复
	_ = repo.Upsert(ctx, urlCandidate(model.SourceNetease, "high", 320, time.Hour))
	if _, err := repo.FindValid(ctx, testKey, "high"); err != nil {
		t.Errorf("refreshed row not active: %v", err)
	}

	unknown := model.TrackKey{Source: model.SourceMigu, SourceID: "404"}
	if err := repo.MarkInactive(ctx, unknown, "high", model.SourceMigu); err != nil {
		t.Errorf("unknown track: %v", err)
	}
}

func TestFindValidByInternalID(t *testing.T) {
	ctx := context.Background()
	repo, gdb := newTestURLRepo(t)
	_ = repo.Upsert(ctx, urlCandidate(model.SourceNetease, "high", 320, time.Hour))

	track, err := NewGormSongRepository(gdb).FindBySource(ctx, model.SourceNetease, "12345")
	if err != nil {
		t.Fatal(err)
	}
	got, err := repo.FindValid(ctx, model.TrackKey{InternalID: track.ID}, "high")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL == "" {
		t.Error("empty url")
	}
}

func TestRepositoryErrorWrapping(t *testing.T) {
	ctx := context.Background()
	repo, gdb := newTestURLRepo(t)
	sqlDB, _ := gdb.DB()
	_ = sqlDB.Close()

	_, err := repo.FindValid(ctx, model.TrackKey{InternalID: 1}, "high")
	if !IsRepositoryError(err) {
		t.Fatalf("err = %v, want *RepositoryError", err)
	}
	var re *RepositoryError
	if errors.As(err, &re) && re.Op == "" {
		t.Error("missing op")
	}
}

func TestPickBest(t *testing.T) {
	if PickBest(nil, "high") != nil {
		t.Error("empty input should yield nil")
	}
	a := urlCandidate(model.SourceNetease, "standard", 128, time.Hour)
	b := urlCandidate(model.SourceTencent, "standard", 192, time.Hour)
	if got := PickBest([]*model.PlaybackCandidate{a, b}, "standard"); got != b {
		t.Errorf("ties on quality should go to the higher bitrate")
	}
}
