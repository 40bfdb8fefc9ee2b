package server

import (
	"context"
	"fmt"

	"QFMResolver/cache"
	"QFMResolver/config"
	"QFMResolver/core/netease"
	"QFMResolver/core/resolver"
	"QFMResolver/core/source"
	"QFMResolver/core/telemetry"
	"QFMResolver/db"
	"QFMResolver/logger"
	"QFMResolver/model"
	"QFMResolver/repository"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 组装好的解析服务及其资源
type App struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Redis    *redis.Client // 仅 CACHE_BACKEND=redis 时非空
	Cache    cache.Store
	Resolver *resolver.Resolver
	Metrics  *prometheus.Registry
}

// NewApp 按配置建立数据库、缓存、音源和解析器
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	gdb, err := db.OpenGorm(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		_ = db.CloseGormDB(gdb)
		return nil, err
	}

	app := &App{Cfg: cfg, DB: gdb, Metrics: prometheus.NewRegistry()}
	app.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := app.initCache(ctx); err != nil {
		app.Close()
		return nil, err
	}

	priority, err := model.ParseSourceList(cfg.SourcePriority)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("invalid SOURCE_PRIORITY: %w", err)
	}

	metrics, err := telemetry.NewMetricsReporter(app.Metrics)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Resolver = resolver.New(resolver.Config{
		MaxCacheTTL:     cfg.CacheMaxTTL,
		DefaultPriority: priority,
		Logger:          logger.Named("resolver"),
	}, resolver.Deps{
		Cache:    app.Cache,
		URLs:     repository.NewGormSongURLRepository(gdb),
		Songs:    repository.NewGormSongRepository(gdb),
		Registry: NewRegistry(cfg),
		Reporter: telemetry.Multi(telemetry.NewLogReporter(logger.Named("telemetry")), metrics),
		Negative: cache.NewNegativeCache(cfg.NegativeCacheSize, cfg.NegativeCacheTTL),
	})
	return app, nil
}

func (a *App) initCache(ctx context.Context) error {
	switch a.Cfg.CacheBackend {
	case "", "memory":
		// 过期清理由 Run 中的 sweeper 负责
		a.Cache = cache.NewMemoryStore(cache.MemoryOptions{
			Shards: a.Cfg.CacheShards,
			Logger: logger.Named("cache"),
		})
	case "redis":
		client, err := db.NewRedisClient(ctx, a.Cfg)
		if err != nil {
			return err
		}
		a.Redis = client
		a.Cache = cache.NewRedisStore(client, a.Cfg.CacheKeyPrefix)
	case "db":
		a.Cache = cache.NewDBStore(a.DB)
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", a.Cfg.CacheBackend)
	}
	logger.Info("cache backend ready", logger.String("backend", a.Cfg.CacheBackend))
	return nil
}

// NewRegistry 注册全部内置音源：网易云直连，其余经由 GD音乐台
func NewRegistry(cfg *config.Config) *source.Registry {
	client := netease.NewClient(cfg.NeteaseAPIURL)
	if cfg.NeteaseCookie != "" {
		client.SetCookie(cfg.NeteaseCookie)
	}

	opts := []source.NeteaseOption{source.WithNeteaseLogger(logger.Named("netease"))}
	if cfg.NeteaseDetail {
		opts = append(opts, source.WithTrackDetail())
	}

	reg := source.NewRegistry(source.WithTimeout(source.NewNeteaseAdapter(client, opts...), cfg.AdapterTimeout))
	for _, src := range []model.MusicSource{
		model.SourceTencent,
		model.SourceKugou,
		model.SourceKuwo,
		model.SourceMigu,
		model.SourceBilibili,
		model.SourceGDStudio,
	} {
		reg.Register(source.WithTimeout(source.NewGDStudioAdapter(src, cfg.GDStudioAPIURL, cfg.GDStudioURLTTL), cfg.AdapterTimeout))
	}
	return reg
}

// Close 释放数据库、Redis 和内存缓存
func (a *App) Close() {
	if c, ok := a.Cache.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := db.CloseGormDB(a.DB); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
}
