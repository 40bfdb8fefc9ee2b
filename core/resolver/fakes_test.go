package resolver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"QFMResolver/cache"
	"QFMResolver/core/telemetry"
	"QFMResolver/model"
	"QFMResolver/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fetchFunc func(ctx context.Context, call int32, id, quality string) (*model.PlaybackCandidate, error)

type fakeAdapter struct {
	src   model.MusicSource
	calls atomic.Int32
	fn    fetchFunc
}

func newFakeAdapter(src model.MusicSource, fn fetchFunc) *fakeAdapter {
	return &fakeAdapter{src: src, fn: fn}
}

func (a *fakeAdapter) Source() model.MusicSource { return a.src }

func (a *fakeAdapter) Fetch(ctx context.Context, id, quality string) (*model.PlaybackCandidate, error) {
	n := a.calls.Add(1)
	return a.fn(ctx, n, id, quality)
}

func (a *fakeAdapter) Calls() int {
	return int(a.calls.Load())
}

func candidate(url, quality string, expires time.Time) *model.PlaybackCandidate {
	br := 320
	return &model.PlaybackCandidate{
		Quality:   quality,
		Bitrate:   &br,
		Format:    "mp3",
		URL:       url,
		ExpiresAt: &expires,
		IsActive:  true,
	}
}

// memURLRepo 内存版播放地址仓库
type memURLRepo struct {
	mu        sync.Mutex
	rows      map[string]*model.PlaybackCandidate
	now       func() time.Time
	findErr   error
	findCalls atomic.Int32
}

func newMemURLRepo(now func() time.Time) *memURLRepo {
	return &memURLRepo{rows: make(map[string]*model.PlaybackCandidate), now: now}
}

func rowKey(key model.TrackKey, quality string, src model.MusicSource) string {
	return fmt.Sprintf("%s|%s|%s", key, model.NormalizeQuality(quality), src)
}

func (r *memURLRepo) FindValid(_ context.Context, key model.TrackKey, quality string) (*model.PlaybackCandidate, error) {
	r.findCalls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var valid []*model.PlaybackCandidate
	for _, c := range r.rows {
		if c.TrackKey == key && c.ValidAt(r.now()) {
			cp := *c
			valid = append(valid, &cp)
		}
	}
	if best := repository.PickBest(valid, quality); best != nil {
		return best, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memURLRepo) Upsert(_ context.Context, c *model.PlaybackCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.TrackKey = model.TrackKey{Source: c.TrackKey.Source, SourceID: c.TrackKey.SourceID}
	r.rows[rowKey(cp.TrackKey, c.Quality, c.Source)] = &cp
	return nil
}

func (r *memURLRepo) MarkInactive(_ context.Context, key model.TrackKey, quality string, src model.MusicSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key = model.TrackKey{Source: key.Source, SourceID: key.SourceID}
	if c, ok := r.rows[rowKey(key, quality, src)]; ok {
		c.IsActive = false
	}
	return nil
}

func (r *memURLRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memSongRepo struct {
	tracks map[int64]*model.Track
}

func (r *memSongRepo) FindByID(_ context.Context, id int64) (*model.Track, error) {
	if t, ok := r.tracks[id]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memSongRepo) FindBySource(_ context.Context, src model.MusicSource, sourceID string) (*model.Track, error) {
	for _, t := range r.tracks {
		if t.Source == src && t.SourceID == sourceID {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSongRepo) Upsert(_ context.Context, t *model.Track) (*model.Track, error) {
	return t, nil
}

// brokenStore 每次调用都返回 ErrUnavailable
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: connection refused", cache.ErrUnavailable)
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("%w: connection refused", cache.ErrUnavailable)
}

func (brokenStore) Invalidate(context.Context, string) error {
	return fmt.Errorf("%w: connection refused", cache.ErrUnavailable)
}

type recordingReporter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recordingReporter) Report(_ context.Context, e telemetry.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingReporter) Kinds() []telemetry.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
