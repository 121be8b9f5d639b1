package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MorseWayne/catalog_shop/internal/resp"
)

// Timeout 为请求设置处理时限，超时后返回统一的 JSON 错误体（状态码 503）。
// d <= 0 时不做限制。
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(resp.Response[struct{}]{
		Code:    resp.CodeTimeout,
		Message: "request timeout",
	})

	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		th := http.TimeoutHandler(next, d, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 正常响应会覆盖该头；超时响应沿用
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			th.ServeHTTP(w, r)
		})
	}
}
