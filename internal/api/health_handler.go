package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/catalog_shop/internal/resp"
)

// Pinger 可做健康检查的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version string
	checks  map[string]Pinger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

// Healthz 依赖全部可用时返回 200，否则返回 503
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	result := &HealthResponse{Status: "ok", Version: h.version}
	status := http.StatusOK
	for name, p := range h.checks {
		if result.Checks == nil {
			result.Checks = make(map[string]string, len(h.checks))
		}
		if err := p.Ping(ctx); err != nil {
			result.Checks[name] = err.Error()
			result.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		result.Checks[name] = "ok"
	}

	code := resp.CodeOK
	if status != http.StatusOK {
		code = resp.CodeInternalError
	}
	resp.WriteJSON(c.Writer, status, code, result.Status, result, requestID(c), traceID(c))
}
