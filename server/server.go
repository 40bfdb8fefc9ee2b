package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"QFMResolver/cache"
	"QFMResolver/config"
	"QFMResolver/logger"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewRouter 注册全部路由
func NewRouter(h *ResolveHandler, gatherer prometheus.Gatherer, health func(context.Context) error) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(accessLogMiddleware(logger.Named("http")))

	api := router.PathPrefix("/api/resolve").Subrouter()
	api.HandleFunc("/{source}/{id}", h.HandleResolve).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/{source}/{id}", h.HandleInvalidate).Methods(http.MethodDelete)
	api.HandleFunc("/{source}/{id}/dead", h.HandleMarkDead).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return router
}

// 添加 CORS 中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLogMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)))
		})
	}
}

// Run 启动 HTTP 服务和缓存清理，ctx 取消后优雅退出
func Run(ctx context.Context, app *App) error {
	handler := NewResolveHandler(app.Resolver, app.Cfg.AdapterTimeout*3, logger.Named("http"))
	srv := &http.Server{
		Addr:         app.Cfg.HTTPAddr,
		Handler:      NewRouter(handler, app.Metrics, app.healthCheck),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sw, ok := app.Cache.(cache.Sweeper); ok && app.Cfg.CacheSweepInterval > 0 {
		g.Go(func() error {
			sweepLoop(ctx, sw, app.Cfg.CacheSweepInterval, logger.Named("cache"))
			return nil
		})
	}

	return g.Wait()
}

func sweepLoop(ctx context.Context, sw cache.Sweeper, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.Sweep(ctx)
			if err != nil {
				log.Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("swept expired cache entries", zap.Int("removed", n))
			}
		}
	}
}

func (a *App) healthCheck(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		return a.Redis.Ping(ctx).Err()
	}
	return nil
}

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()
	logger.InitLogger(logger.DefaultConfig(cfg.LogLevel, cfg.LogFile))
	defer logger.Sync()

	// 创建一个通道来接收操作系统信号
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize resolver", logger.ErrorField(err))
	}
	defer app.Close()

	if err := Run(ctx, app); err != nil {
		logger.Error("Server stopped with error", logger.ErrorField(err))
		return
	}
	logger.Info("Server stopped")
}
