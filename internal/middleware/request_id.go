package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLen = 128
)

// RequestID 确保每个请求都有请求 ID：
// 合法的 X-Request-ID 原样沿用，否则生成 UUID；ID 写入响应头与请求上下文。
// 请求带有 traceparent 时一并记录追踪 ID。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if !validRequestID(rid) {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)

		ctx := withRequestID(r.Context(), rid)
		if tid := traceIDFromHeader(r.Header.Get(HeaderTraceParent)); tid != "" {
			ctx = withTraceID(ctx, tid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || r == ' ' {
			return false
		}
	}
	return true
}
