// Package limiter 提供令牌桶限流器（Redis 分布式实现和进程内实现）
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LimitResult 限流结果
type LimitResult struct {
	Allowed    bool          `json:"allowed"`     // 是否允许通过
	Limit      int64         `json:"limit"`       // 桶容量
	Remaining  int64         `json:"remaining"`   // 剩余令牌
	RetryAfter time.Duration `json:"retry_after"` // 建议重试时间
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查是否允许请求通过
	Allow(ctx context.Context, key string) (*LimitResult, error)

	// AllowN 检查是否允许N个请求通过
	AllowN(ctx context.Context, key string, n int64) (*LimitResult, error)

	// Reset 重置限流状态
	Reset(ctx context.Context, key string) error

	// GetInfo 获取限流信息
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)
}

// LimitInfo 限流信息
type LimitInfo struct {
	Limit     int64         `json:"limit"`      // 桶容量
	Remaining int64         `json:"remaining"`  // 当前令牌数
	Window    time.Duration `json:"window"`     // 补充窗口
	ResetTime time.Time     `json:"reset_time"` // 桶补满的时间
}

// Config 令牌桶配置：每个 Window 补充 Rate 个令牌，桶容量为 Burst
type Config struct {
	Rate      int64         `json:"rate"`
	Window    time.Duration `json:"window"`
	Burst     int64         `json:"burst"`
	KeyPrefix string        `json:"key_prefix"`
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be greater than 0")
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst must be greater than 0")
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s")
	}
	return nil
}

// Backend 限流器后端
type Backend string

const (
	BackendRedis Backend = "redis" // 多实例共享
	BackendLocal Backend = "local" // 进程内
)

// New 按后端创建限流器
// Redis 后端在 Redis 出错时退回进程内令牌桶。
func New(backend Backend, client redis.Cmdable, config *Config, logger *zap.Logger) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter config: %w", err)
	}

	switch backend {
	case BackendLocal, "":
		return NewLocalLimiter(config), nil
	case BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis backend requires a client")
		}
		tb, err := NewTokenBucketLimiter(client, config)
		if err != nil {
			return nil, err
		}
		return NewFallbackLimiter(tb, NewLocalLimiter(config), logger), nil
	default:
		return nil, fmt.Errorf("unknown limiter backend %q", backend)
	}
}

// FallbackLimiter 主限流器出错时使用备用限流器
type FallbackLimiter struct {
	primary  Limiter
	fallback Limiter
	logger   *zap.Logger
}

// NewFallbackLimiter 创建带降级的限流器
func NewFallbackLimiter(primary, fallback Limiter, logger *zap.Logger) *FallbackLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackLimiter{primary: primary, fallback: fallback, logger: logger}
}

// Allow 检查是否允许请求通过
func (f *FallbackLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return f.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (f *FallbackLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	result, err := f.primary.AllowN(ctx, key, n)
	if err == nil {
		return result, nil
	}
	f.logger.Warn("primary limiter failed, using fallback", zap.String("key", key), zap.Error(err))
	return f.fallback.AllowN(ctx, key, n)
}

// Reset 重置两个限流器的状态
func (f *FallbackLimiter) Reset(ctx context.Context, key string) error {
	if err := f.fallback.Reset(ctx, key); err != nil {
		return err
	}
	return f.primary.Reset(ctx, key)
}

// GetInfo 获取限流信息
func (f *FallbackLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	info, err := f.primary.GetInfo(ctx, key)
	if err == nil {
		return info, nil
	}
	return f.fallback.GetInfo(ctx, key)
}
