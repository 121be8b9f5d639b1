package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/cache"
	"github.com/MorseWayne/catalog_shop/internal/resp"
)

const (
	HeaderIdempotencyKey      = "X-Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	Cache     cache.Cache
	Header    string
	KeyPrefix string

	// 已完成响应的保存时长
	TTL time.Duration

	// 处理中标记的时长，超过后视为处理方已失效
	LockTTL time.Duration

	Logger *zap.Logger
}

// storedResponse 已完成请求的响应快照
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// IdempotencyMiddleware 基于 X-Idempotency-Key 的幂等中间件
// 同一个键的首个请求正常处理并保存响应，之后的重复请求直接重放该响应；
// 处理中的重复请求返回 409，键相同但请求体不同返回 422。
// 5xx 响应不保存，允许客户端重试。未携带幂等键的请求直接放行。
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.Header == "" {
		cfg.Header = HeaderIdempotencyKey
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "idem"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNullCache()
	}
	lg := cfg.Logger

	return func(c *gin.Context) {
		key := c.GetHeader(cfg.Header)
		if key == "" {
			c.Next()
			return
		}
		reqID := c.GetString(GinKeyRequestID)
		traceID := c.GetString(GinKeyTraceID)

		if len(key) > maxIdempotencyKeyLen {
			resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, "idempotency key too long", reqID, traceID)
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, "failed to read request body", reqID, traceID)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		fingerprint := fingerprintOf(body)

		scope := c.Request.Method + ":" + c.FullPath()
		if user := UserFromGin(c); user != nil {
			scope += ":" + user.Username
		}
		recordKey := cfg.KeyPrefix + ":resp:" + scope + ":" + key
		lockKey := cfg.KeyPrefix + ":lock:" + scope + ":" + key

		ctx := c.Request.Context()

		var stored storedResponse
		switch err := cfg.Cache.Get(ctx, recordKey, &stored); {
		case err == nil:
			if stored.Fingerprint != fingerprint {
				resp.Error(c.Writer, http.StatusUnprocessableEntity, resp.CodeConflict,
					"idempotency key reused with a different request", reqID, traceID)
				c.Abort()
				return
			}
			lg.Info("idempotent replay", zap.String("request_id", reqID), zap.String("key", key))
			c.Header(HeaderIdempotencyReplayed, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, cache.ErrCacheMiss):
			lg.Error("idempotency lookup failed, request allowed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		acquired, err := cfg.Cache.SetNX(ctx, lockKey, reqID, cfg.LockTTL)
		if err != nil {
			lg.Error("idempotency lock failed, request allowed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			resp.Error(c.Writer, http.StatusConflict, resp.CodeConflict,
				"a request with this idempotency key is in progress", reqID, traceID)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		defer func() {
			// 请求可能已超时，清理使用独立的上下文
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()

			if status := rec.Status(); status < http.StatusInternalServerError {
				snapshot := storedResponse{
					Status:      status,
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.buf.Bytes(),
					Fingerprint: fingerprint,
				}
				if err := cfg.Cache.Set(cleanupCtx, recordKey, snapshot, cfg.TTL); err != nil {
					lg.Error("failed to store idempotent response", zap.String("key", key), zap.Error(err))
				}
			}
			if err := cfg.Cache.Del(cleanupCtx, lockKey); err != nil {
				lg.Warn("failed to release idempotency lock", zap.String("key", key), zap.Error(err))
			}
		}()

		c.Next()
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// bodyRecorder 在写出响应的同时保留一份副本
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
