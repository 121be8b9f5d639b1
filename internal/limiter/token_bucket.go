package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucketLimiter 基于Redis Lua脚本的令牌桶限流器
type TokenBucketLimiter struct {
	client    redis.Cmdable
	config    *Config
	keyPrefix string
	script    *redis.Script
}

// NewTokenBucketLimiter 创建令牌桶限流器
func NewTokenBucketLimiter(client redis.Cmdable, config *Config) (*TokenBucketLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("invalid redis client")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "limiter:tb"
	}

	return &TokenBucketLimiter{
		client:    client,
		config:    config,
		keyPrefix: prefix,
		script:    redis.NewScript(tokenBucketScript),
	}, nil
}

// Redis Lua脚本：令牌桶算法
const tokenBucketScript = `
-- KEYS[1]: 令牌桶key
-- ARGV[1]: 容量(burst)
-- ARGV[2]: 补充速率(rate)
-- ARGV[3]: 时间窗口(window秒)
-- ARGV[4]: 请求令牌数
-- ARGV[5]: 当前时间戳

local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

-- 只按整数个令牌推进补充时间，避免丢失零头
local added = math.floor(math.max(0, now - last_refill) * rate / window)
if added > 0 then
    tokens = math.min(capacity, tokens + added)
    last_refill = now
end

local allowed = 0
local retry_after = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
else
    retry_after = math.ceil((requested - tokens) * window / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', last_refill)
redis.call('EXPIRE', key, window * 2 + math.ceil(capacity * window / rate))

return {allowed, tokens, retry_after}
`

func (tb *TokenBucketLimiter) getKey(key string) string {
	return fmt.Sprintf("%s:%s", tb.keyPrefix, key)
}

func (tb *TokenBucketLimiter) windowSeconds() int64 {
	return int64(tb.config.Window / time.Second)
}

// Allow 检查是否允许请求通过
func (tb *TokenBucketLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (tb *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	values, err := tb.script.Run(ctx, tb.client,
		[]string{tb.getKey(key)},
		tb.config.Burst,
		tb.config.Rate,
		tb.windowSeconds(),
		n,
		time.Now().Unix(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to execute token bucket script: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected script result format: %v", values)
	}

	return &LimitResult{
		Allowed:    values[0] == 1,
		Limit:      tb.config.Burst,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Second,
	}, nil
}

// Reset 重置令牌桶
func (tb *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	if err := tb.client.Del(ctx, tb.getKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset token bucket: %w", err)
	}
	return nil
}

// GetInfo 获取令牌桶信息（只读，不推进补充时间）
func (tb *TokenBucketLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	values, err := tb.client.HMGet(ctx, tb.getKey(key), "tokens", "last_refill").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token bucket info: %w", err)
	}

	now := time.Now().Unix()
	tokens := tb.config.Burst
	lastRefill := now
	if len(values) == 2 {
		if s, ok := values[0].(string); ok {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				tokens = v
			}
		}
		if s, ok := values[1].(string); ok {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				lastRefill = v
			}
		}
	}

	window := tb.windowSeconds()
	tokens += (now - lastRefill) * tb.config.Rate / window
	if tokens > tb.config.Burst {
		tokens = tb.config.Burst
	}

	return &LimitInfo{
		Limit:     tb.config.Burst,
		Remaining: tokens,
		Window:    tb.config.Window,
		ResetTime: resetTime(time.Unix(now, 0), tokens, tb.config),
	}, nil
}

// resetTime 计算桶补满的时间
func resetTime(now time.Time, tokens int64, config *Config) time.Time {
	missing := config.Burst - tokens
	if missing <= 0 {
		return now
	}
	windows := (missing + config.Rate - 1) / config.Rate
	return now.Add(time.Duration(windows) * config.Window)
}
