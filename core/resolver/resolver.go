// Package resolver turns a track request into a currently valid playback URL.
//
// Lookups go through the TTL cache, then the durable URL repository, and only
// then through the source adapters in priority order. Concurrent requests for
// the same track and quality share one upstream fetch.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"QFMResolver/cache"
	"QFMResolver/core/source"
	"QFMResolver/core/telemetry"
	"QFMResolver/model"
	"QFMResolver/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxCacheTTL    = 30 * time.Minute
	DefaultNegativeTTL    = 3 * time.Second
	defaultPersistTimeout = 5 * time.Second
)

// Config 解析器配置
type Config struct {
	// MaxCacheTTL 写入 TTL 缓存的上限，也用于没有过期时间的地址
	MaxCacheTTL time.Duration
	// DefaultPriority 请求未指定优先级时使用，为空时使用已注册的全部音源
	DefaultPriority []model.MusicSource
	// PersistTimeout bounds the repository and cache writes after a fetch.
	PersistTimeout time.Duration
	Clock          func() time.Time
	Logger         *zap.Logger
}

// Deps 解析器依赖
type Deps struct {
	Cache    cache.Store                  // 必需
	URLs     repository.SongURLRepository // 必需
	Songs    repository.SongRepository    // 可选，用于内部 ID 的请求
	Registry *source.Registry             // 必需
	Reporter telemetry.Reporter           // 可选
	Negative *cache.NegativeCache         // 可选，nil 表示关闭
}

// Resolver 多音源播放地址解析器
type Resolver struct {
	cfg      Config
	cache    cache.Store
	urls     repository.SongURLRepository
	songs    repository.SongRepository
	registry *source.Registry
	reporter telemetry.Reporter
	negative *cache.NegativeCache

	flights singleflight.Group
	now     func() time.Time
	log     *zap.Logger
}

// New 创建解析器
func New(cfg Config, deps Deps) *Resolver {
	if cfg.MaxCacheTTL <= 0 {
		cfg.MaxCacheTTL = DefaultMaxCacheTTL
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if deps.Reporter == nil {
		deps.Reporter = telemetry.Nop
	}
	if deps.Registry == nil {
		deps.Registry = source.NewRegistry()
	}

	return &Resolver{
		cfg:      cfg,
		cache:    deps.Cache,
		urls:     deps.URLs,
		songs:    deps.Songs,
		registry: deps.Registry,
		reporter: deps.Reporter,
		negative: deps.Negative,
		now:      cfg.Clock,
		log:      cfg.Logger,
	}
}

// request 校验并规范化后的请求
type request struct {
	key      model.TrackKey // 一定带 Source/SourceID
	quality  string
	priority []model.MusicSource
	cacheKey string
	scope    string // 负缓存范围：本次会尝试的音源
}

// CacheKey 返回 TTL 缓存中的键：url:<source>:<sourceId>:<quality>
func CacheKey(key model.TrackKey, quality string) string {
	return "url:" + key.Source.Lower() + ":" + key.SourceID + ":" + model.NormalizeQuality(quality)
}

// Resolve 解析播放地址。
// 只会返回 ErrInvalidRequest、*ExhaustedError 或调用方 context 的错误，
// 缓存和仓库的故障在内部降级处理。
func (r *Resolver) Resolve(ctx context.Context, key model.TrackKey, quality string, priority []model.MusicSource) (Outcome, error) {
	start := time.Now()

	req, err := r.prepare(ctx, key, quality, priority)
	if err != nil {
		return Outcome{}, err
	}

	if out, ok := r.fromCache(ctx, req); ok {
		r.reportOutcome(ctx, req, out, nil, start)
		return out, nil
	}
	if out, ok := r.fromDurable(ctx, req); ok {
		r.reportOutcome(ctx, req, out, nil, start)
		return out, nil
	}

	if r.negative.Has(req.cacheKey, req.scope) {
		err := &ExhaustedError{Key: req.key, Quality: req.quality, Cached: true}
		r.reportOutcome(ctx, req, Outcome{}, err, start)
		return Outcome{}, err
	}

	out, err := r.join(ctx, req)
	if err != nil {
		if ctx.Err() == nil || errors.Is(err, ErrAllSourcesExhausted) {
			r.reportOutcome(ctx, req, Outcome{}, err, start)
		}
		return Outcome{}, err
	}
	r.reportOutcome(ctx, req, out, nil, start)
	return out, nil
}

// prepare 校验输入，并把内部 ID 转换成 (source, sourceId)
func (r *Resolver) prepare(ctx context.Context, key model.TrackKey, quality string, priority []model.MusicSource) (request, error) {
	if err := key.Validate(); err != nil {
		return request{}, invalid("%v", err)
	}
	for _, src := range priority {
		if !src.Valid() {
			return request{}, invalid("unknown source %q in priority", src)
		}
	}

	if !key.HasSourceID() {
		if r.songs == nil {
			return request{}, invalid("internal id %d cannot be resolved", key.InternalID)
		}
		track, err := r.songs.FindByID(ctx, key.InternalID)
		if errors.Is(err, repository.ErrNotFound) {
			return request{}, invalid("unknown internal id %d", key.InternalID)
		}
		if err != nil {
			// 无法确定上游标识时没法继续，只能报给调用方
			return request{}, err
		}
		key = model.TrackKey{Source: track.Source, SourceID: track.SourceID, InternalID: track.ID}
	}

	if len(priority) == 0 {
		priority = r.cfg.DefaultPriority
	}
	if len(priority) == 0 {
		priority = r.registry.Sources()
	}

	quality = model.NormalizeQuality(quality)
	return request{
		key:      key,
		quality:  quality,
		priority: priority,
		cacheKey: CacheKey(key, quality),
		scope:    sourceScope(priority),
	}, nil
}

func sourceScope(priority []model.MusicSource) string {
	names := make([]string, len(priority))
	for i, src := range priority {
		names[i] = src.Lower()
	}
	return strings.Join(names, ",")
}

// fromCache CacheCheck：缓存故障只跳过这一层
func (r *Resolver) fromCache(ctx context.Context, req request) (Outcome, bool) {
	if r.cache == nil {
		return Outcome{}, false
	}
	raw, err := r.cache.Get(ctx, req.cacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.log.Warn("cache unavailable, skipping",
				zap.String("key", req.cacheKey), zap.Error(err))
		}
		return Outcome{}, false
	}

	var c model.PlaybackCandidate
	if err := json.Unmarshal(raw, &c); err != nil {
		r.log.Warn("dropping undecodable cache entry",
			zap.String("key", req.cacheKey), zap.Error(err))
		_ = r.cache.Invalidate(ctx, req.cacheKey)
		return Outcome{}, false
	}
	if !c.ValidAt(r.now()) {
		return Outcome{}, false
	}
	return newOutcome(&c, OriginCache, req.quality), true
}

// fromDurable DurableCheck：仓库故障按未命中处理，但单独记录
func (r *Resolver) fromDurable(ctx context.Context, req request) (Outcome, bool) {
	if r.urls == nil {
		return Outcome{}, false
	}
	c, err := r.urls.FindValid(ctx, req.key, req.quality)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("repository unavailable, degrading to source fetch",
				zap.Stringer("track", req.key), zap.String("quality", req.quality), zap.Error(err))
		}
		return Outcome{}, false
	}
	if !c.ValidAt(r.now()) {
		return Outcome{}, false
	}
	c.TrackKey = req.key
	r.writeCache(ctx, req, c)
	return newOutcome(c, OriginDurable, req.quality), true
}

// writeCache 写入 TTL 缓存，TTL = min(剩余有效期, MaxCacheTTL)
func (r *Resolver) writeCache(ctx context.Context, req request, c *model.PlaybackCandidate) {
	if r.cache == nil {
		return
	}
	ttl := r.cfg.MaxCacheTTL
	if remaining, ok := c.TTL(r.now()); ok {
		if remaining <= 0 {
			return
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	raw, err := json.Marshal(c)
	if err != nil {
		r.log.Error("encode candidate", zap.Stringer("track", req.key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, req.cacheKey, raw, ttl); err != nil {
		r.log.Warn("cache write failed", zap.String("key", req.cacheKey), zap.Error(err))
	}
}

// MarkDead 标记某个地址已失效（例如播放端拿到 404/410）。
// 不会取消正在进行的解析，只影响之后的查找。
func (r *Resolver) MarkDead(ctx context.Context, key model.TrackKey, quality string, src model.MusicSource) error {
	if err := key.Validate(); err != nil {
		return invalid("%v", err)
	}
	if !src.Valid() {
		return invalid("unknown source %q", src)
	}
	if !key.HasSourceID() {
		if r.songs == nil {
			return invalid("internal id %d cannot be resolved", key.InternalID)
		}
		track, err := r.songs.FindByID(ctx, key.InternalID)
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("unknown internal id %d", key.InternalID)
		}
		if err != nil {
			return err
		}
		key = model.TrackKey{Source: track.Source, SourceID: track.SourceID, InternalID: track.ID}
	}

	quality = model.NormalizeQuality(quality)
	if r.urls != nil {
		if err := r.urls.MarkInactive(ctx, key, quality, src); err != nil {
			return err
		}
	}

	// 降级结果可能缓存在其他音质的键下
	r.invalidateAll(ctx, key, quality)
	r.log.Info("playback url marked dead",
		zap.Stringer("track", key), zap.String("quality", quality), zap.String("source", src.Lower()))
	return nil
}

// Invalidate 删除 TTL 缓存中的条目，键不存在时不报错
func (r *Resolver) Invalidate(ctx context.Context, key model.TrackKey, quality string) error {
	if !key.HasSourceID() {
		return invalid("invalidate requires source and source id")
	}
	k := CacheKey(key, quality)
	r.negative.Forget(k)
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Invalidate(ctx, k); err != nil && !errors.Is(err, cache.ErrMiss) {
		r.log.Warn("cache invalidate failed", zap.String("key", k), zap.Error(err))
		return err
	}
	return nil
}

func (r *Resolver) invalidateAll(ctx context.Context, key model.TrackKey, quality string) {
	qualities := []string{"", quality,
		model.QualityStandard, model.QualityHigher, model.QualityHigh,
		model.QualityExhigh, model.QualityLossless, model.QualityHiRes}
	seen := make(map[string]bool, len(qualities))
	for _, q := range qualities {
		if seen[q] {
			continue
		}
		seen[q] = true
		_ = r.Invalidate(ctx, key, q)
	}
}
