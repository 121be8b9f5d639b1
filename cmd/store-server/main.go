package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/api"
	"github.com/MorseWayne/catalog_shop/internal/cache"
	"github.com/MorseWayne/catalog_shop/internal/catalog"
	"github.com/MorseWayne/catalog_shop/internal/config"
	"github.com/MorseWayne/catalog_shop/internal/limiter"
	"github.com/MorseWayne/catalog_shop/internal/logger"
	"github.com/MorseWayne/catalog_shop/internal/mq"
	"github.com/MorseWayne/catalog_shop/internal/router"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

// App 持有 HTTP 处理器和需要在退出时关闭的资源
type App struct {
	Handler   http.Handler
	cache     cache.Cache
	redis     *redis.Client
	publisher mq.Publisher
	logger    *zap.Logger
}

// Close 释放外部连接
func (a *App) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Sugar().Errorw("failed to close order publisher", "err", err)
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Sugar().Errorw("failed to close cache", "err", err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			a.logger.Sugar().Errorw("failed to close redis client", "err", err)
		}
	}
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	var opts []logger.Option
	if cfg.Log.File != "" {
		opts = append(opts, logger.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initRedis 仅在缓存或限流需要时连接 Redis，连接失败返回 nil
func initRedis(cfg *config.Config, lg *zap.Logger) *redis.Client {
	needed := (cfg.Cache.Enabled && cfg.Cache.Type == "redis") ||
		(cfg.RateLimit.Enabled && cfg.RateLimit.Backend == string(limiter.BackendRedis))
	if !needed {
		return nil
	}

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		lg.Sugar().Warnw("failed to connect to Redis, falling back to in-process backends", "addr", cfg.Redis.Addr(), "error", err)
		return nil
	}
	lg.Sugar().Infow("redis connected", "addr", cfg.Redis.Addr())
	return client
}

// initCache 初始化幂等响应缓存
func initCache(cfg *config.Config, client *redis.Client, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}

	if cfg.Cache.Type == "redis" {
		if client != nil {
			lg.Sugar().Infow("cache enabled", "type", "redis", "ttl", cfg.Cache.TTL)
			return cache.NewRedisCache(client)
		}
		lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	}

	lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
	return cache.NewMemoryCache()
}

// initLimiter 初始化下单限流器，未启用时返回 nil
func initLimiter(cfg *config.Config, client *redis.Client, lg *zap.Logger) (limiter.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		lg.Sugar().Infow("order rate limit disabled")
		return nil, nil
	}

	backend := limiter.Backend(cfg.RateLimit.Backend)
	var cmd redis.Cmdable
	if client != nil {
		cmd = client
	} else if backend == limiter.BackendRedis {
		backend = limiter.BackendLocal
	}

	l, err := limiter.New(backend, cmd, &limiter.Config{
		Rate:      cfg.RateLimit.Rate,
		Burst:     cfg.RateLimit.Burst,
		Window:    cfg.RateLimit.Window,
		KeyPrefix: cfg.App.Name + ":limiter",
	}, lg)
	if err != nil {
		return nil, fmt.Errorf("init limiter: %w", err)
	}
	lg.Sugar().Infow("order rate limit enabled", "backend", backend,
		"rate", cfg.RateLimit.Rate, "burst", cfg.RateLimit.Burst, "window", cfg.RateLimit.Window)
	return l, nil
}

// initPublisher 初始化订单事件发布器
func initPublisher(cfg *config.Config, lg *zap.Logger) (mq.Publisher, error) {
	if !cfg.MQ.Enabled {
		lg.Sugar().Infow("order events disabled")
		return mq.NopPublisher{}, nil
	}

	mqCfg := mq.DefaultConfig()
	mqCfg.Host = cfg.MQ.Host
	mqCfg.Port = cfg.MQ.Port
	mqCfg.Username = cfg.MQ.Username
	mqCfg.Password = cfg.MQ.Password
	mqCfg.VHost = cfg.MQ.VHost
	mqCfg.UseTLS = cfg.MQ.UseTLS
	mqCfg.Exchange = cfg.MQ.Exchange
	mqCfg.PublishTimeout = cfg.MQ.PublishTimeout

	publisher, err := mq.NewRabbitPublisher(mqCfg, lg)
	if err != nil {
		return nil, fmt.Errorf("init order publisher: %w", err)
	}
	lg.Sugar().Infow("order events enabled", "host", mqCfg.Host, "exchange", mqCfg.Exchange)
	return publisher, nil
}

// buildApp 组装依赖：目录 -> 服务 -> 处理器 -> 路由
func buildApp(cfg *config.Config, lg *zap.Logger) (*App, error) {
	file, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, err
	}
	store, promotions, err := file.Build()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	lg.Sugar().Infow("catalog loaded", "products", store.Len(), "promotions", len(promotions))

	client := initRedis(cfg, lg)
	cacheInstance := initCache(cfg, client, lg)

	orderLimiter, err := initLimiter(cfg, client, lg)
	if err != nil {
		return nil, err
	}

	publisher, err := initPublisher(cfg, lg)
	if err != nil {
		return nil, err
	}

	jwtService := service.NewJWTService(cfg, lg)
	authService, err := service.NewAuthService(cfg.Admin, jwtService, lg)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	storeService := service.NewStoreService(store, promotions, publisher, lg)

	checks := map[string]api.Pinger{"cache": cacheInstance}
	if client != nil {
		checks["redis"] = pingerFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	deps := &router.Dependencies{
		StoreHandler:     api.NewStoreHandler(storeService, lg),
		AuthHandler:      api.NewAuthHandler(authService, lg),
		HealthHandler:    api.NewHealthHandler(cfg.App.Version, checks),
		JWTService:       jwtService,
		OrderLimiter:     orderLimiter,
		IdempotencyCache: cacheInstance,
		IdempotencyTTL:   cfg.Cache.TTL,
	}

	return &App{
		Handler:   router.New().Setup(cfg, deps, lg),
		cache:     cacheInstance,
		redis:     client,
		publisher: publisher,
		logger:    lg,
	}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Sugar().Errorw("server error", "err", err)
			return
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	app, err := buildApp(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize application", "err", err)
	}
	defer app.Close()

	startServer(cfg, app.Handler, lg)
}
