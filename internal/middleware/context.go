// Package middleware 提供 HTTP 中间件：请求 ID、恢复、超时、CORS、访问日志、认证与幂等。
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/catalog_shop/internal/domain"
)

// contextKey 用于在上下文中存取特定键，避免与外部键冲突。
type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyTraceID   contextKey = "trace_id"
	contextKeyUser      contextKey = "user"
)

// gin 上下文中的键
const (
	GinKeyRequestID = "request_id"
	GinKeyTraceID   = "trace_id"
	GinKeyUser      = "user"
)

// HeaderTraceParent W3C trace context 头
const HeaderTraceParent = "traceparent"

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, id)
}

func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）。
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(contextKeyRequestID).(string)
	return s
}

// TraceIDFromContext 从上下文中读取追踪 ID（可能为空）。
func TraceIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(contextKeyTraceID).(string)
	return s
}

// UserFromContext 从请求上下文中获取当前用户。
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(contextKeyUser).(*domain.User)
	return user
}

// traceIDFromHeader 解析 traceparent: version-traceid-parentid-flags
func traceIDFromHeader(v string) string {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 || len(parts[1]) != 32 {
		return ""
	}
	return parts[1]
}

// GinContext 把 net/http 层写入的请求 ID 和追踪 ID 同步到 gin 上下文。
func GinContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		c.Set(GinKeyRequestID, RequestIDFromContext(ctx))
		c.Set(GinKeyTraceID, TraceIDFromContext(ctx))
		c.Next()
	}
}

// UserFromGin 从 gin 上下文中获取当前用户。
func UserFromGin(c *gin.Context) *domain.User {
	if v, ok := c.Get(GinKeyUser); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return UserFromContext(c.Request.Context())
}
