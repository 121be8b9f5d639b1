package limiter

import (
	"context"
	"math"
	"sync"
	"time"
)

// LocalLimiter 进程内令牌桶限流器
// 令牌按时间连续补充；补满的空闲桶会被定期清理。
type LocalLimiter struct {
	mu        sync.Mutex
	config    *Config
	buckets   map[string]*localBucket
	now       func() time.Time
	lastSweep time.Time
}

type localBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewLocalLimiter 创建进程内令牌桶限流器
func NewLocalLimiter(config *Config) *LocalLimiter {
	return &LocalLimiter{
		config:  config,
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// ratePerSecond 每秒补充的令牌数
func (l *LocalLimiter) ratePerSecond() float64 {
	return float64(l.config.Rate) / l.config.Window.Seconds()
}

// refill 返回补充后的桶，调用方需持有锁
func (l *LocalLimiter) refill(key string, now time.Time) *localBucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{tokens: float64(l.config.Burst), lastRefill: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(l.config.Burst), b.tokens+elapsed*l.ratePerSecond())
		b.lastRefill = now
	}
	return b
}

// sweep 删除已补满的桶，调用方需持有锁
func (l *LocalLimiter) sweep(now time.Time) {
	fullAfter := time.Duration(float64(l.config.Burst) / l.ratePerSecond() * float64(time.Second))
	if now.Sub(l.lastSweep) < fullAfter {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) >= fullAfter {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Allow 检查是否允许请求通过
func (l *LocalLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (l *LocalLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	b := l.refill(key, now)

	result := &LimitResult{Limit: l.config.Burst}
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		result.Allowed = true
	} else {
		missing := float64(n) - b.tokens
		result.RetryAfter = time.Duration(math.Ceil(missing/l.ratePerSecond())) * time.Second
	}
	result.Remaining = int64(math.Floor(b.tokens))
	return result, nil
}

// Reset 重置令牌桶
func (l *LocalLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// GetInfo 获取令牌桶信息
func (l *LocalLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tokens := int64(math.Floor(l.refill(key, now).tokens))
	return &LimitInfo{
		Limit:     l.config.Burst,
		Remaining: tokens,
		Window:    l.config.Window,
		ResetTime: resetTime(now, tokens, l.config),
	}, nil
}
