package limiter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/resp"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Limiter Limiter

	// Key生成函数
	KeyGenerator func(*gin.Context) string

	// 限流器出错时的处理函数，默认放行
	ErrorHandler func(*gin.Context, error)

	// 被限流时的处理函数
	OnLimitReached func(*gin.Context, *LimitResult)

	// 是否跳过限流检查
	Skip func(*gin.Context) bool

	// 是否写入 X-RateLimit-* 响应头
	Headers bool

	Logger *zap.Logger
}

// DefaultKeyGenerator 默认Key生成器（基于IP）
func DefaultKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// PathKeyGenerator 按路由和IP生成Key
func PathKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("path:%s:%s:ip:%s", c.Request.Method, c.FullPath(), c.ClientIP())
}

// RateLimitMiddleware 创建限流中间件
func RateLimitMiddleware(config *MiddlewareConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ErrorHandler == nil {
		lg := config.Logger
		config.ErrorHandler = func(c *gin.Context, err error) {
			lg.Error("rate limiter failed, request allowed", zap.Error(err))
			c.Next()
		}
	}
	if config.OnLimitReached == nil {
		config.OnLimitReached = defaultOnLimitReached
	}

	return func(c *gin.Context) {
		if config.Skip != nil && config.Skip(c) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		result, err := config.Limiter.Allow(ctx, config.KeyGenerator(c))
		if err != nil {
			config.ErrorHandler(c, err)
			return
		}

		if config.Headers {
			setRateLimitHeaders(c, result)
		}

		if !result.Allowed {
			config.OnLimitReached(c, result)
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders 设置限流相关的响应头
func setRateLimitHeaders(c *gin.Context, result *LimitResult) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	if result.RetryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(result.RetryAfter/time.Second), 10))
	}
}

func defaultOnLimitReached(c *gin.Context, result *LimitResult) {
	resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
		"too many requests, please retry later", c.GetString("request_id"), c.GetString("trace_id"))
}

// OrderRateLimitMiddleware 下单接口限流中间件，按客户端IP限流
func OrderRateLimitMiddleware(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	return RateLimitMiddleware(&MiddlewareConfig{
		Limiter: limiter,
		KeyGenerator: func(c *gin.Context) string {
			return fmt.Sprintf("order:ip:%s", c.ClientIP())
		},
		OnLimitReached: func(c *gin.Context, result *LimitResult) {
			resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
				"too many orders, please retry later", c.GetString("request_id"), c.GetString("trace_id"))
		},
		Headers: true,
		Logger:  logger,
	})
}
